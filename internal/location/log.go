// Package location holds the append-only location log of a game and the
// role-based visibility filter applied to every location report.
package location

import (
	"sync"
	"time"

	"hideseek/internal/geo"
)

// Sample is one reported position. Samples are never mutated or deleted;
// the full history is kept for post-game replay.
type Sample struct {
	PlayerID    string    `json:"player_id"`
	Timestamp   time.Time `json:"timestamp"`
	Coordinates geo.Point `json:"coordinates"`
}

// Log is the per-game location history. Appends only.
type Log struct {
	mu      sync.Mutex
	samples []*Sample
	latest  map[string]*Sample
}

func NewLog() *Log {
	return &Log{
		latest: make(map[string]*Sample),
	}
}

// Append records a sample. The most recent append per player (by
// timestamp) becomes that player's current position.
func (l *Log) Append(playerID string, p geo.Point, ts time.Time) (*Sample, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sample := &Sample{PlayerID: playerID, Timestamp: ts, Coordinates: p}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, sample)
	if cur, ok := l.latest[playerID]; !ok || !sample.Timestamp.Before(cur.Timestamp) {
		l.latest[playerID] = sample
	}
	return sample, nil
}

// Latest returns the player's current sample, or nil if none reported.
func (l *Log) Latest(playerID string) *Sample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest[playerID]
}

// History returns all samples in append order.
func (l *Log) History() []*Sample {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Sample, len(l.samples))
	copy(out, l.samples)
	return out
}

// AveragePoint returns the mean position of the latest samples of the
// given players. Players without a sample are skipped; ok is false when
// no player has reported yet.
func (l *Log) AveragePoint(playerIDs []string) (geo.Point, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sumLng, sumLat float64
	n := 0
	for _, id := range playerIDs {
		if s, ok := l.latest[id]; ok {
			sumLng += s.Coordinates.Lng()
			sumLat += s.Coordinates.Lat()
			n++
		}
	}
	if n == 0 {
		return geo.Point{}, false
	}
	return geo.NewPoint(sumLng/float64(n), sumLat/float64(n)), true
}
