package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IssueAndVerify(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)

	token, issued, err := m.Issue("u-1")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)

	claims, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, issued.TokenID, claims.TokenID)
}

func TestManager_RejectsForeignAndExpiredTokens(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	other := NewManager("other-secret", time.Hour, nil)

	token, _, err := other.Issue("u-1")
	require.NoError(t, err)
	_, err = m.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	past := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return past }
	expired, _, err := m.Issue("u-1")
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsNoneAlgorithm(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u-1",
		ID:        "jti",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Revoke(t *testing.T) {
	m := NewManager("secret", time.Hour, NewMemoryRevoker())
	ctx := context.Background()

	token, claims, err := m.Issue("u-1")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, claims))

	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)

	fresh, _, err := m.Issue("u-1")
	require.NoError(t, err)
	_, err = m.Verify(ctx, fresh)
	assert.NoError(t, err)
}

func TestMemoryRevoker_Expiry(t *testing.T) {
	r := NewMemoryRevoker()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "a", time.Minute))
	revoked, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevoker_Concurrent(t *testing.T) {
	r := NewMemoryRevoker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			_ = r.Revoke(ctx, id, time.Minute)
			_, _ = r.IsRevoked(ctx, id)
		}(i)
	}
	wg.Wait()
}

func TestRedisRevoker(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	r := NewRedisRevoker(client)
	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	ttl, err := client.TTL(ctx, revokedKey("jti-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
