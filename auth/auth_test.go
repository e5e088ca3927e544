package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpupo63/diary-backend/errs"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("not-a-hash", "correct horse"))
}

func TestSessions_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	s := NewSessions("secret", time.Hour, NewMemoryRevoker())
	userID := uuid.New()

	token, claims, err := s.Issue(userID)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := s.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, claims.ID, got.ID)

	_, other, err := s.Issue(userID)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, other.ID)
}

func TestSessions_VerifyRejects(t *testing.T) {
	ctx := context.Background()
	s := NewSessions("secret", time.Hour, nil)
	token, _, err := s.Issue(uuid.New())
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := s.Verify(ctx, "")
		assert.True(t, errs.IsMissingTokenError(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewSessions("other", time.Hour, nil)
		_, err := other.Verify(ctx, token)
		assert.True(t, errs.IsInvalidTokenError(err))
	})

	t.Run("expired", func(t *testing.T) {
		late := NewSessions("secret", time.Hour, nil)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Verify(ctx, token)
		assert.True(t, errs.IsInvalidTokenError(err))
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uuid.New()}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(ctx, none)
		assert.True(t, errs.IsInvalidTokenError(err))
	})
}

func TestSessions_Revoke(t *testing.T) {
	ctx := context.Background()
	s := NewSessions("secret", time.Hour, NewMemoryRevoker())
	token, claims, err := s.Issue(uuid.New())
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, claims))

	_, err = s.Verify(ctx, token)
	assert.True(t, errs.IsTokenRevokedError(err))
}

func TestMemoryRevoker_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryRevoker()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Revoke(ctx, "a", now.Add(time.Minute)))
	revoked, err := m.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = m.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, m.Revoke(ctx, "b", now.Add(-time.Second)))
	revoked, _ = m.IsRevoked(ctx, "b")
	assert.False(t, revoked)
}

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) Set(_ context.Context, key string, _ interface{}, exp time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.keys[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisRevoker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	r := &RedisRevoker{client: fake, now: func() time.Time { return now }}

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(30*time.Minute)))
	assert.Equal(t, 30*time.Minute, fake.keys[revokedKeyPrefix+"jti-1"])

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "old", now.Add(-time.Minute)))
	assert.NotContains(t, fake.keys, revokedKeyPrefix+"old")
}

func TestSessions_RevokerFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{keys: map[string]time.Duration{}, err: errors.New("connection refused")}
	s := NewSessions("secret", time.Hour, &RedisRevoker{client: fake, now: time.Now})

	token, _, err := s.Issue(uuid.New())
	require.NoError(t, err)
	_, err = s.Verify(ctx, token)
	assert.NoError(t, err)
}
