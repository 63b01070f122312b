// Package games holds the running game sessions, keyed by game ID and by
// join code. Games are removed only by explicit end-of-life action, never
// swept automatically.
package games

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"hideseek/internal/events"
	"hideseek/internal/gamedata"
	"hideseek/internal/questions"
)

type Store struct {
	mu     sync.Mutex
	games  map[string]*gamedata.Game
	byCode map[string]string
	policy gamedata.Policy
}

func NewStore(policy gamedata.Policy) *Store {
	return &Store{
		games:  make(map[string]*gamedata.Game),
		byCode: make(map[string]string),
		policy: policy,
	}
}

// Create opens a new lobby with a unique join code.
func (s *Store) Create(hostClientID string, timing gamedata.TimingRules, inv *questions.Inventory, bus *events.Bus) (*gamedata.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Try up to 10 times to generate a unique code
	for i := 0; i < 10; i++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating join code: %w", err)
		}
		if _, exists := s.byCode[code]; exists {
			continue
		}

		game := gamedata.NewGame(uuid.New().String(), code, hostClientID, timing, s.policy, inv, bus)
		s.games[game.ID()] = game
		s.byCode[code] = game.ID()
		return game, nil
	}
	return nil, fmt.Errorf("failed to generate unique join code after 10 attempts")
}

func (s *Store) Get(id string) *gamedata.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games[id]
}

// GetByCode resolves a join code. Finished games burn their code, so the
// mapping is checked against the game's current code.
func (s *Store) GetByCode(code string) *gamedata.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil
	}
	g := s.games[id]
	if g == nil || g.JoinCode() != code {
		return nil
	}
	return g
}

// ReleaseCode frees a finished game's join code for reuse.
func (s *Store) ReleaseCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byCode, code)
}

func (s *Store) List() []*gamedata.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*gamedata.Game, 0, len(s.games))
	for _, g := range s.games {
		list = append(list, g)
	}
	return list
}
