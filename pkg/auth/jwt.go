package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the acting user and their role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type JWTService interface {
	GenerateAccessToken(userID, role string, ttl time.Duration) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type hmacJWTService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTService signs and verifies HS256 tokens.
func NewJWTService(secret, issuer string) JWTService {
	return &hmacJWTService{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (s *hmacJWTService) GenerateAccessToken(userID, role string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *hmacJWTService) ValidateToken(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token: missing subject")
	}
	return &claims, nil
}
