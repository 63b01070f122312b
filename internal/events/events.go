// Package events carries the core's "a mutation happened" signals to the
// notification collaborator. The core only emits; formatting and
// delivery happen downstream.
package events

// QuestionEvent fires after a successful ask, lock-in, or answer.
type QuestionEvent struct {
	GameID     string `json:"game_id"`
	QuestionID string `json:"question_id"`
	Sequence   int    `json:"sequence"`
	Type       string `json:"question_type"`
	Status     string `json:"status"`
	Answer     string `json:"answer,omitempty"`
}

// PhaseEvent fires after a game phase change. Silent events are recorded
// but not pushed to players.
type PhaseEvent struct {
	GameID string `json:"game_id"`
	Phase  string `json:"phase"`
	Silent bool   `json:"-"`
}

type Bus struct {
	Questions chan QuestionEvent
	Phases    chan PhaseEvent
}

func NewBus() *Bus {
	return &Bus{
		Questions: make(chan QuestionEvent, 16),
		Phases:    make(chan PhaseEvent, 16),
	}
}

// PublishQuestion emits without blocking; a full channel drops the event
// rather than stalling a game mutation.
func (b *Bus) PublishQuestion(ev QuestionEvent) {
	select {
	case b.Questions <- ev:
	default:
	}
}

func (b *Bus) PublishPhase(ev PhaseEvent) {
	select {
	case b.Phases <- ev:
	default:
	}
}
