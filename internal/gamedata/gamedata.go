// Package gamedata ties one game together: the phase state machine, the
// per-game serialization boundary for question mutations, and the role
// checks in front of the question engine.
package gamedata

import (
	"sync"
	"time"

	"hideseek/internal/apperr"
	"hideseek/internal/events"
	"hideseek/internal/geo"
	"hideseek/internal/location"
	"hideseek/internal/players"
	"hideseek/internal/questions"
)

type Phase string

const (
	PhaseLobby    = Phase("lobby")
	PhaseHiding   = Phase("hiding")
	PhaseSeeking  = Phase("seeking")
	PhaseEndgame  = Phase("endgame")
	PhaseFinished = Phase("finished")
)

// RestPeriod is a daily window during which play pauses, HH:MM strings.
type RestPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type TimingRules struct {
	HidingTimeMin    int          `json:"hiding_time_min"`
	QuestionDelayMin int          `json:"location_question_delay_min"`
	RestPeriods      []RestPeriod `json:"rest_periods,omitempty"`
}

// Policy resolves rule points the rulebook leaves open.
type Policy struct {
	AllowEndgameQuestions bool
	SilentEndgame         bool
}

// Game is one game session. All question mutations and phase transitions
// run under the game mutex, so ask/lock-in/answer linearize with phase
// changes; operations on different games never contend. Location appends
// only lock the location log.
type Game struct {
	mu        sync.Mutex
	phase     Phase
	joinCode  string
	id        string
	host      string
	createdAt time.Time
	timing    TimingRules
	policy    Policy

	Players   *players.Store
	Locations *location.Log
	Questions *questions.Engine
	Events    *events.Bus
}

func NewGame(id, joinCode, hostClientID string, timing TimingRules, policy Policy, inv *questions.Inventory, bus *events.Bus) *Game {
	return &Game{
		phase:     PhaseLobby,
		id:        id,
		joinCode:  joinCode,
		host:      hostClientID,
		createdAt: time.Now(),
		timing:    timing,
		policy:    policy,
		Players:   players.NewStore(),
		Locations: location.NewLog(),
		Questions: questions.NewEngine(inv),
		Events:    bus,
	}
}

func (g *Game) ID() string { return g.id }

func (g *Game) HostClient() string { return g.host }

func (g *Game) CreatedAt() time.Time { return g.createdAt }

func (g *Game) Timing() TimingRules { return g.timing }

func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// JoinCode returns the current join code; empty once the game finished.
func (g *Game) JoinCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joinCode
}

// Start moves lobby → hiding. Every player needs a role and both sides
// must be represented.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return apperr.Conflictf("game is not in lobby")
	}
	if !g.Players.AllRolesAssigned() {
		return apperr.Conflictf("not all players have assigned roles")
	}
	g.phase = PhaseHiding
	g.Events.PublishPhase(events.PhaseEvent{GameID: g.id, Phase: string(PhaseHiding)})
	return nil
}

// next maps each phase to its single forward successor.
var next = map[Phase]Phase{
	PhaseHiding:  PhaseSeeking,
	PhaseSeeking: PhaseEndgame,
}

// phaseOrder indexes the forward sequence so re-delivered transitions
// can be recognized after the game has moved further on.
var phaseOrder = map[Phase]int{
	PhaseLobby:    0,
	PhaseHiding:   1,
	PhaseSeeking:  2,
	PhaseEndgame:  3,
	PhaseFinished: 4,
}

// AdvanceTo applies an externally triggered forward transition
// (hiding → seeking, seeking → endgame). Re-delivery of an already
// applied transition is a no-op, not an error: the external scheduler
// may fire the same advance twice, arbitrarily late.
func (g *Game) AdvanceTo(target Phase) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A target at or behind the current phase was already applied.
	if phaseOrder[target] <= phaseOrder[g.phase] {
		return nil
	}
	if next[g.phase] != target {
		return apperr.Conflictf("cannot advance from %s to %s", g.phase, target)
	}
	g.phase = target

	silent := target == PhaseEndgame && g.policy.SilentEndgame
	g.Events.PublishPhase(events.PhaseEvent{GameID: g.id, Phase: string(target), Silent: silent})
	return nil
}

// End jumps to finished from any active phase and burns the join code.
// Ending an already finished game is a no-op.
func (g *Game) End() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.phase {
	case PhaseFinished:
		return nil
	case PhaseLobby:
		return apperr.Conflictf("cannot end a game that never started")
	}
	g.phase = PhaseFinished
	g.joinCode = ""
	g.Events.PublishPhase(events.PhaseEvent{GameID: g.id, Phase: string(PhaseFinished)})
	return nil
}

// questionsOpen reports whether the current phase permits asking.
// Callers hold g.mu.
func (g *Game) questionsOpen() bool {
	switch g.phase {
	case PhaseSeeking:
		return true
	case PhaseEndgame:
		return g.policy.AllowEndgameQuestions
	}
	return false
}

// AskQuestion validates the seeker's request, snapshots the mean seeker
// position, and opens the question.
func (g *Game) AskQuestion(callerID string, qtype questions.Type, slotIndex int, customDistanceM *float64) (*questions.Question, error) {
	caller := g.Players.Get(callerID)
	if caller == nil {
		return nil, apperr.NotFoundf("player not found in this game")
	}
	if !caller.HasRole(players.RoleSeeker) {
		return nil, apperr.Authorizationf("only seekers can ask questions")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.questionsOpen() {
		return nil, apperr.Conflictf("questions cannot be asked during %s", g.phase)
	}

	seekers := g.Players.WithRole(players.RoleSeeker)
	ids := make([]string, len(seekers))
	for i, s := range seekers {
		ids[i] = s.ID
	}
	start, ok := g.Locations.AveragePoint(ids)
	if !ok {
		return nil, apperr.Conflictf("no seeker locations available")
	}

	q, err := g.Questions.Ask(questions.AskRequest{
		Type:            qtype,
		SlotIndex:       slotIndex,
		CustomDistanceM: customDistanceM,
		AskedBy:         callerID,
		SeekerStart:     start,
	}, time.Now())
	if err != nil {
		return nil, err
	}

	g.Events.PublishQuestion(questionEvent(g.id, q))
	return q, nil
}

// LockInQuestion records the asking seeker's current position as the
// thermometer end point.
func (g *Game) LockInQuestion(callerID, questionID string) (*questions.Question, error) {
	caller := g.Players.Get(callerID)
	if caller == nil {
		return nil, apperr.NotFoundf("player not found in this game")
	}
	if !caller.HasRole(players.RoleSeeker) {
		return nil, apperr.Authorizationf("only seekers can lock in")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseFinished {
		return nil, apperr.Conflictf("game is finished")
	}
	latest := g.Locations.Latest(callerID)
	if latest == nil {
		return nil, apperr.Conflictf("no location reported yet")
	}

	q, err := g.Questions.LockIn(questionID, callerID, latest.Coordinates)
	if err != nil {
		return nil, err
	}

	g.Events.PublishQuestion(questionEvent(g.id, q))
	return q, nil
}

// PreviewQuestion shows the hider what committing now would answer.
// Read-only; never persisted.
func (g *Game) PreviewQuestion(callerID, questionID string) (questions.Outcome, error) {
	caller := g.Players.Get(callerID)
	if caller == nil {
		return questions.Outcome{}, apperr.NotFoundf("player not found in this game")
	}
	if !caller.HasRole(players.RoleHider) {
		return questions.Outcome{}, apperr.Authorizationf("only the hider can preview answers")
	}

	latest := g.Locations.Latest(callerID)
	if latest == nil {
		return questions.Outcome{}, apperr.Conflictf("no location reported yet")
	}
	return g.Questions.Preview(questionID, latest.Coordinates)
}

// AnswerQuestion commits the hider's answer.
func (g *Game) AnswerQuestion(callerID, questionID string) (*questions.Question, error) {
	caller := g.Players.Get(callerID)
	if caller == nil {
		return nil, apperr.NotFoundf("player not found in this game")
	}
	if !caller.HasRole(players.RoleHider) {
		return nil, apperr.Authorizationf("only the hider can answer questions")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	latest := g.Locations.Latest(callerID)
	if latest == nil {
		return nil, apperr.Conflictf("no location reported yet")
	}

	q, err := g.Questions.Answer(questionID, latest.Coordinates, time.Now())
	if err != nil {
		return nil, err
	}

	g.Events.PublishQuestion(questionEvent(g.id, q))
	return q, nil
}

// ReportLocation appends the caller's position and returns the players
// visible to them. The visibility filter runs on every report.
func (g *Game) ReportLocation(callerID string, p geo.Point, ts time.Time) ([]location.VisiblePlayer, error) {
	caller := g.Players.Get(callerID)
	if caller == nil {
		return nil, apperr.NotFoundf("player not found in this game")
	}
	if _, err := g.Locations.Append(callerID, p, ts); err != nil {
		return nil, err
	}
	return location.Visible(g.Players.GetList(), g.Locations, caller)
}

// VisiblePlayers re-runs the visibility filter without reporting.
func (g *Game) VisiblePlayers(callerID string) ([]location.VisiblePlayer, error) {
	caller := g.Players.Get(callerID)
	if caller == nil {
		return nil, apperr.NotFoundf("player not found in this game")
	}
	return location.Visible(g.Players.GetList(), g.Locations, caller)
}

// LocationHistory returns the full replay log, available only once the
// game has finished.
func (g *Game) LocationHistory() ([]*location.Sample, error) {
	if g.Phase() != PhaseFinished {
		return nil, apperr.Conflictf("location history is only available after the game ends")
	}
	return g.Locations.History(), nil
}

// ListQuestions returns the chronological question log. Seekers get
// redacted copies without the hider's answering positions.
func (g *Game) ListQuestions(callerID string) ([]questions.Question, error) {
	caller := g.Players.Get(callerID)
	if caller == nil {
		return nil, apperr.NotFoundf("player not found in this game")
	}
	hide := caller.HasRole(players.RoleSeeker)

	all := g.Questions.List()
	out := make([]questions.Question, 0, len(all))
	for _, q := range all {
		if hide {
			out = append(out, q.Redacted())
		} else {
			out = append(out, *q)
		}
	}
	return out, nil
}

func questionEvent(gameID string, q *questions.Question) events.QuestionEvent {
	return events.QuestionEvent{
		GameID:     gameID,
		QuestionID: q.ID,
		Sequence:   q.Sequence,
		Type:       string(q.Type),
		Status:     string(q.Status),
		Answer:     q.Answer,
	}
}
