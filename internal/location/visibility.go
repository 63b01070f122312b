package location

import (
	"time"

	"hideseek/internal/apperr"
	"hideseek/internal/geo"
	"hideseek/internal/players"
)

// VisiblePlayer is another player's latest position as exposed to a
// requester that passed the visibility filter.
type VisiblePlayer struct {
	PlayerID    string       `json:"player_id"`
	Name        string       `json:"name"`
	Color       string       `json:"color"`
	Role        players.Role `json:"role"`
	Coordinates geo.Point    `json:"coordinates"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Visible filters the roster's latest samples for the requester.
// Both roles see all seekers except the requester themselves; hiders are
// never visible. A requester without a role gets an authorization error.
// The filter never consults question state.
func Visible(roster []*players.Player, log *Log, requester *players.Player) ([]VisiblePlayer, error) {
	if requester.Role == nil {
		return nil, apperr.Authorizationf("player has no role assigned")
	}

	out := make([]VisiblePlayer, 0, len(roster))
	for _, p := range roster {
		if p.ID == requester.ID {
			continue
		}
		if !p.HasRole(players.RoleSeeker) {
			continue
		}
		s := log.Latest(p.ID)
		if s == nil {
			continue
		}
		out = append(out, VisiblePlayer{
			PlayerID:    p.ID,
			Name:        p.Name,
			Color:       p.Color,
			Role:        *p.Role,
			Coordinates: s.Coordinates,
			Timestamp:   s.Timestamp,
		})
	}
	return out, nil
}
