// Package questions implements the question lifecycle machine and the
// exclusion resolver: radar and thermometer questions move through
// asked → in_progress → answerable → answered, and each committed answer
// yields an exclusion zone computed by the geometry kernel.
package questions

import (
	"time"

	"hideseek/internal/geo"
)

type Type string

const (
	TypeRadar       = Type("radar")
	TypeThermometer = Type("thermometer")
)

func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeRadar, TypeThermometer:
		return Type(s), true
	}
	return "", false
}

type Status string

// StatusAsked is every question's birth status. Radar advances past it
// to answerable within the same ask; thermometers move to in_progress
// until lock-in.
const (
	StatusAsked      = Status("asked")
	StatusInProgress = Status("in_progress")
	StatusAnswerable = Status("answerable")
	StatusAnswered   = Status("answered")
)

// Answer values per question type.
const (
	AnswerYes     = "yes"
	AnswerNo      = "no"
	AnswerCloser  = "closer"
	AnswerFarther = "farther"
)

// Exclusion is the region a committed answer rules out (or confirms),
// as rendering geometry plus a tag naming the ruled-out side.
type Exclusion struct {
	Polygon  geo.Polygon `json:"polygon"`
	RuledOut string      `json:"ruled_out"`
}

// Ruled-out side tags.
const (
	RuledOutInside        = "inside"
	RuledOutOutside       = "outside"
	RuledOutCloserToStart = "closer_to_start"
	RuledOutCloserToEnd   = "closer_to_end"
)

// Question is one asked question. Once answered, HiderLocation, Answer,
// Exclusion, and AnsweredAt are immutable.
type Question struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Type     Type   `json:"question_type"`
	Status   Status `json:"status"`

	// RadiusM for radar, MinTravelM for thermometer.
	RadiusM    float64 `json:"radius_m,omitempty"`
	MinTravelM float64 `json:"min_travel_m,omitempty"`

	AskedBy     string    `json:"asked_by"`
	AskedAt     time.Time `json:"asked_at"`
	SeekerStart geo.Point `json:"seeker_location_start"`

	SeekerEnd     *geo.Point `json:"seeker_location_end,omitempty"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty"`
	HiderLocation *geo.Point `json:"hider_location,omitempty"`
	Answer        string     `json:"answer,omitempty"`
	Exclusion     *Exclusion `json:"exclusion,omitempty"`
}

// Open reports whether the question still blocks new asks.
func (q *Question) Open() bool {
	return q.Status != StatusAnswered
}

// Redacted returns a copy safe to show seekers: the hider's answering
// position stays hidden until the game is over.
func (q *Question) Redacted() Question {
	out := *q
	out.HiderLocation = nil
	return out
}
