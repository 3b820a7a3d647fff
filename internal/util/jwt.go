package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
)

// Claims carries the principal issued by the identity provider.
type Claims struct {
	UserID uuid.UUID `json:"sub"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: ttl}
}

// Generate signs a token for principal. The service only verifies tokens;
// Generate exists for tests and local tooling.
func (m *JWTManager) Generate(principal domain.Principal) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		UserID: principal.ID,
		Role:   string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Principal converts verified claims into the caller identity. Unknown roles
// are rejected rather than downgraded.
func (c *Claims) Principal() (domain.Principal, error) {
	if c.UserID == uuid.Nil {
		return domain.Principal{}, errors.New("token has no subject")
	}
	role, ok := domain.ParseRole(c.Role)
	if !ok {
		return domain.Principal{}, fmt.Errorf("unsupported role %q", c.Role)
	}
	return domain.Principal{ID: c.UserID, Role: role}, nil
}
