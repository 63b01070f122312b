package players

// Role is a player's side in the game. The operation set per role is
// closed: hiders answer questions, seekers ask them.
type Role string

const (
	RoleHider  = Role("hider")
	RoleSeeker = Role("seeker")
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleHider, RoleSeeker:
		return Role(s), true
	}
	return "", false
}

type Player struct {
	ID       string `json:"id"`
	ClientID string `json:"-"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Role     *Role  `json:"role"`
}

func (p *Player) HasRole(r Role) bool {
	return p.Role != nil && *p.Role == r
}
