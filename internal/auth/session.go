// Package auth resolves the acting user of a request into a Session value
// that is passed explicitly to the code that needs it.
package auth

import "context"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleProvider Role = "provider"
	RoleStaff    Role = "staff"
	RolePatient  Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProvider, RoleStaff, RolePatient:
		return true
	}
	return false
}

// Session is either anonymous or an authenticated user with one role.
type Session struct {
	userID string
	role   Role
}

func Anonymous() Session {
	return Session{}
}

func Authenticated(userID string, role Role) Session {
	return Session{userID: userID, role: role}
}

func (s Session) IsAuthenticated() bool {
	return s.userID != ""
}

func (s Session) UserID() string {
	return s.userID
}

func (s Session) Role() Role {
	return s.role
}

// HasRole reports whether the session is authenticated with one of roles.
func (s Session) HasRole(roles ...Role) bool {
	if !s.IsAuthenticated() {
		return false
	}
	for _, r := range roles {
		if s.role == r {
			return true
		}
	}
	return false
}

// ActorID names the session in audit records.
func (s Session) ActorID() string {
	if !s.IsAuthenticated() {
		return "anonymous"
	}
	return s.userID
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the request session, or Anonymous when none was set.
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey{}).(Session); ok {
		return s
	}
	return Anonymous()
}
