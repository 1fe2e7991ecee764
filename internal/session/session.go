package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrRevoked is returned for a token that was logged out.
	ErrRevoked = errors.New("session revoked")
)

// Claims identifies one login session.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// Manager issues and verifies HS256 session tokens. The token subject is the
// user identifier and the jti names the session for revocation.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

func NewManager(secret string, ttl time.Duration, revoker Revoker) *Manager {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}
}

// TTL returns how long issued tokens stay valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new session token for userID.
func (m *Manager) Issue(userID string) (string, Claims, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ID:        claims.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Verify parses the token and rejects revoked sessions.
func (m *Manager) Verify(ctx context.Context, tokenString string) (Claims, error) {
	registered := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &registered, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(registered.Subject) == "" || registered.ID == "" || registered.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	revoked, err := m.revoker.IsRevoked(ctx, registered.ID)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, ErrRevoked
	}

	return Claims{
		UserID:    registered.Subject,
		TokenID:   registered.ID,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}

// Revoke denies the session until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims Claims) error {
	ttl := claims.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revoker.Revoke(ctx, claims.TokenID, ttl)
}
