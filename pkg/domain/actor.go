package domain

import "sort"

// Role ranks an actor's privilege level.
type Role int

const (
	RoleObserver Role = iota
	RoleMember
	RoleKeeper
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleObserver:
		return "observer"
	case RoleMember:
		return "member"
	case RoleKeeper:
		return "keeper"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole maps a role name to its rank, defaulting to observer.
func ParseRole(name string) Role {
	switch name {
	case "admin":
		return RoleAdmin
	case "keeper":
		return RoleKeeper
	case "member":
		return RoleMember
	default:
		return RoleObserver
	}
}

// Actor identifies the party performing an operation. Every operation takes
// the caller identity explicitly; nothing consults ambient session state.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// CanWrite reports whether the actor may mutate packs directly.
func (a Actor) CanWrite() bool { return a.Role >= RoleKeeper }

// ElectResponder picks the single actor that answers a broadcast proxy
// request: the privileged actor with the highest role rank, ties broken by
// lowest identifier. Returns false if no privileged actor is present.
func ElectResponder(roster []Actor) (Actor, bool) {
	privileged := make([]Actor, 0, len(roster))
	for _, a := range roster {
		if a.CanWrite() {
			privileged = append(privileged, a)
		}
	}
	if len(privileged) == 0 {
		return Actor{}, false
	}
	sort.Slice(privileged, func(i, j int) bool {
		if privileged[i].Role != privileged[j].Role {
			return privileged[i].Role > privileged[j].Role
		}
		return privileged[i].ID < privileged[j].ID
	})
	return privileged[0], true
}
