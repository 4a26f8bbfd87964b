package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jwalitptl/telehealth-admin/internal/config"
	jwtauth "github.com/jwalitptl/telehealth-admin/pkg/auth"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Resolver derives the Session of an incoming request.
type Resolver interface {
	Resolve(r *http.Request) (Session, error)
}

// StaticResolver gives every request the same configured session. It is
// meant for local development and demos.
type StaticResolver struct {
	session Session
}

func NewStaticResolver(s Session) *StaticResolver {
	return &StaticResolver{session: s}
}

func (r *StaticResolver) Resolve(*http.Request) (Session, error) {
	return r.session, nil
}

// JWTResolver reads a bearer token. Requests without one are anonymous;
// a present but invalid token is an error.
type JWTResolver struct {
	tokens jwtauth.JWTService
}

func NewJWTResolver(tokens jwtauth.JWTService) *JWTResolver {
	return &JWTResolver{tokens: tokens}
}

func (r *JWTResolver) Resolve(req *http.Request) (Session, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return Anonymous(), nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return Anonymous(), fmt.Errorf("%w: invalid authorization format", ErrInvalidCredentials)
	}

	claims, err := r.tokens.ValidateToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return Anonymous(), fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Anonymous(), fmt.Errorf("%w: unknown role %q", ErrInvalidCredentials, claims.Role)
	}
	return Authenticated(claims.Subject, role), nil
}

// NewResolver builds the resolver selected by cfg.Mode.
func NewResolver(cfg config.AuthConfig) (Resolver, error) {
	switch cfg.Mode {
	case "static":
		if cfg.StaticUser == "" {
			return NewStaticResolver(Anonymous()), nil
		}
		role := Role(cfg.StaticRole)
		if !role.Valid() {
			return nil, fmt.Errorf("unknown static role %q", cfg.StaticRole)
		}
		return NewStaticResolver(Authenticated(cfg.StaticUser, role)), nil
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, errors.New("jwt secret is required")
		}
		return NewJWTResolver(jwtauth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer)), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}
