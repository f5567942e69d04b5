package model

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type PrincipalKind int

const (
	PrincipalAnonymous PrincipalKind = iota
	PrincipalUser
	PrincipalBot
)

// Principal is the resolved calling identity: an authenticated user with a
// role, the bot holding the shared secret, or nobody. Resolution never fails
// by itself; handlers decide whether Anonymous is acceptable.
type Principal struct {
	Kind   PrincipalKind
	UserID string // set when Kind == PrincipalUser
	Role   Role   // set when Kind == PrincipalUser
}

func Anonymous() Principal { return Principal{Kind: PrincipalAnonymous} }
func BotPrincipal() Principal {
	return Principal{Kind: PrincipalBot}
}
func UserPrincipal(id string, role Role) Principal {
	if role == "" {
		role = RoleUser
	}
	return Principal{Kind: PrincipalUser, UserID: id, Role: role}
}

func (p Principal) IsAdmin() bool { return p.Kind == PrincipalUser && p.Role == RoleAdmin }
func (p Principal) IsBot() bool   { return p.Kind == PrincipalBot }

// Owns reports whether the principal is the user identified by userID.
func (p Principal) Owns(userID string) bool {
	return p.Kind == PrincipalUser && p.UserID != "" && p.UserID == userID
}
