package players

import (
	"sync"

	"github.com/google/uuid"

	"hideseek/internal/apperr"
	"hideseek/internal/utility"
)

// Store holds the players of a single game. Players are never deleted;
// an abandoned player simply stops reporting locations.
type Store struct {
	mu       sync.Mutex
	players  map[string]*Player
	byClient map[string]string
}

func NewStore() *Store {
	return &Store{
		players:  make(map[string]*Player),
		byClient: make(map[string]string),
	}
}

// Add joins a client to the game. Color must be unique within the game;
// an empty color gets a random one assigned.
func (s *Store) Add(clientID, name, color string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byClient[clientID]; exists {
		return nil, apperr.Conflictf("client already joined this game")
	}
	if color == "" {
		color = s.freeColor()
	} else if s.colorTaken(color, "") {
		return nil, apperr.Conflictf("color %s is already taken", color)
	}

	player := &Player{
		ID:       uuid.New().String(),
		ClientID: clientID,
		Name:     name,
		Color:    color,
	}
	s.players[player.ID] = player
	s.byClient[clientID] = player.ID
	return player, nil
}

func (s *Store) Get(id string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id]
}

func (s *Store) GetByClient(clientID string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byClient[clientID]; ok {
		return s.players[id]
	}
	return nil
}

func (s *Store) GetList() []*Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p)
	}
	return list
}

// Update applies a partial update. Nil fields are left unchanged.
func (s *Store) Update(id string, name, color *string, role *Role) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, apperr.NotFoundf("player not found in this game")
	}
	if color != nil {
		if s.colorTaken(*color, id) {
			return nil, apperr.Conflictf("color %s is already taken", *color)
		}
		p.Color = *color
	}
	if name != nil {
		p.Name = *name
	}
	if role != nil {
		r := *role
		p.Role = &r
	}
	return p, nil
}

// AllRolesAssigned reports whether the lobby can start: every player has
// a role and both sides are represented.
func (s *Store) AllRolesAssigned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.players) == 0 {
		return false
	}
	hiders, seekers := 0, 0
	for _, p := range s.players {
		switch {
		case p.Role == nil:
			return false
		case *p.Role == RoleHider:
			hiders++
		case *p.Role == RoleSeeker:
			seekers++
		}
	}
	return hiders > 0 && seekers > 0
}

// WithRole returns all players holding the given role.
func (s *Store) WithRole(role Role) []*Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		if p.Role != nil && *p.Role == role {
			list = append(list, p)
		}
	}
	return list
}

func (s *Store) colorTaken(color, exceptID string) bool {
	for id, p := range s.players {
		if id != exceptID && p.Color == color {
			return true
		}
	}
	return false
}

func (s *Store) freeColor() string {
	for {
		c := utility.RandomColorHex()
		if !s.colorTaken(c, "") {
			return c
		}
	}
}
