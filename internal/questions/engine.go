package questions

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"hideseek/internal/apperr"
	"hideseek/internal/geo"
)

// Engine owns one game's question list and drives the lifecycle
// transitions. Phase gating and role checks belong to the caller; the
// engine enforces the question-level invariants: at most one open
// question, gapless sequence numbers, consume-once slots, and
// write-once answers.
//
// The engine is safe for concurrent use, but callers that must
// linearize questions against phase changes hold the game lock around
// these calls.
type Engine struct {
	mu        sync.Mutex
	inventory *Inventory
	questions []*Question
	byID      map[string]*Question
}

func NewEngine(inv *Inventory) *Engine {
	return &Engine{
		inventory: inv,
		byID:      make(map[string]*Question),
	}
}

type AskRequest struct {
	Type            Type
	SlotIndex       int
	CustomDistanceM *float64
	AskedBy         string
	SeekerStart     geo.Point
}

// Ask spends an inventory slot and opens a new question. Radar questions
// are immediately answerable; thermometers wait in_progress for lock-in.
func (e *Engine) Ask(req AskRequest, now time.Time) (*Question, error) {
	if err := req.SeekerStart.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, q := range e.questions {
		if q.Open() {
			return nil, apperr.Conflictf("question %d is still unanswered", q.Sequence)
		}
	}

	distance, err := e.inventory.Consume(req.Type, req.SlotIndex, req.CustomDistanceM)
	if err != nil {
		return nil, err
	}

	q := &Question{
		ID:          uuid.New().String(),
		Sequence:    len(e.questions) + 1,
		Type:        req.Type,
		Status:      StatusAsked,
		AskedBy:     req.AskedBy,
		AskedAt:     now,
		SeekerStart: req.SeekerStart,
	}
	switch req.Type {
	case TypeRadar:
		q.RadiusM = distance
		q.Status = StatusAnswerable
	case TypeThermometer:
		q.MinTravelM = distance
		q.Status = StatusInProgress
	}

	e.questions = append(e.questions, q)
	e.byID[q.ID] = q
	return q, nil
}

// LockIn records the asking seeker's end position for a thermometer and
// advances it to answerable. Fails without state change when the seeker
// has not travelled min_travel_m yet; succeeding at exactly the minimum
// is allowed.
func (e *Engine) LockIn(id, callerID string, end geo.Point) (*Question, error) {
	if err := end.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.byID[id]
	if !ok {
		return nil, apperr.NotFoundf("question not found")
	}
	if q.Type != TypeThermometer {
		return nil, apperr.Conflictf("only thermometer questions are locked in")
	}
	if q.Status != StatusInProgress {
		return nil, apperr.Conflictf("question is not in progress")
	}
	if q.AskedBy != callerID {
		return nil, apperr.Authorizationf("only the asking seeker can lock in")
	}

	travelled := geo.Distance(q.SeekerStart, end)
	if travelled < q.MinTravelM {
		return nil, apperr.Conflictf("minimum travel not reached: %.0fm of %.0fm", travelled, q.MinTravelM)
	}

	endCopy := end
	q.SeekerEnd = &endCopy
	q.Status = StatusAnswerable
	return q, nil
}

// Preview computes what the answer would be if committed right now. It
// stores nothing; calling it any number of times is side-effect free.
func (e *Engine) Preview(id string, hider geo.Point) (Outcome, error) {
	if err := hider.Validate(); err != nil {
		return Outcome{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.byID[id]
	if !ok {
		return Outcome{}, apperr.NotFoundf("question not found")
	}
	if q.Status != StatusAnswerable {
		return Outcome{}, apperr.NotAvailablef("question is not answerable")
	}
	return resolve(q, hider)
}

// Answer snapshots the hider's position and commits the definitive
// answer and exclusion. Terminal: all answer fields are written exactly
// once and never change thereafter.
func (e *Engine) Answer(id string, hider geo.Point, now time.Time) (*Question, error) {
	if err := hider.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.byID[id]
	if !ok {
		return nil, apperr.NotFoundf("question not found")
	}
	if q.Status == StatusAnswered {
		return nil, apperr.Conflictf("already answered")
	}
	if q.Status != StatusAnswerable {
		return nil, apperr.NotAvailablef("question is not answerable")
	}

	outcome, err := resolve(q, hider)
	if err != nil {
		return nil, err
	}

	hiderCopy := hider
	answeredAt := now
	exclusion := outcome.Exclusion
	q.HiderLocation = &hiderCopy
	q.Answer = outcome.Answer
	q.Exclusion = &exclusion
	q.AnsweredAt = &answeredAt
	q.Status = StatusAnswered
	return q, nil
}

// Get returns a question by ID, or nil.
func (e *Engine) Get(id string) *Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.byID[id]
}

// List returns all questions in ask order.
func (e *Engine) List() []*Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Question, len(e.questions))
	copy(out, e.questions)
	return out
}

// HasOpen reports whether any question is still unanswered.
func (e *Engine) HasOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range e.questions {
		if q.Open() {
			return true
		}
	}
	return false
}

// Inventory exposes the game's slot lists for state reporting.
func (e *Engine) Inventory() *Inventory {
	return e.inventory
}
