package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	tb := NewTokenBlacklist(rdb)
	v := newTestVerifier(t, tb)
	ctx := context.Background()

	t.Run("RevokedTokenFailsVerify", func(t *testing.T) {
		token, err := v.CreateToken("user123", "", time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(ctx, token)
		require.NoError(t, err)

		require.NoError(t, v.Revoke(ctx, tb, token))

		blacklisted, err := tb.IsTokenBlacklisted(ctx, token)
		require.NoError(t, err)
		assert.True(t, blacklisted)

		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrTokenRevoked)

		key, _ := blacklistKey(token)
		ttl := mr.TTL(key)
		assert.Greater(t, ttl, 59*time.Minute)
		assert.LessOrEqual(t, ttl, time.Hour)
	})

	t.Run("NonBlacklistedToken", func(t *testing.T) {
		token, err := v.CreateToken("user456", "", time.Hour)
		require.NoError(t, err)

		blacklisted, err := tb.IsTokenBlacklisted(ctx, token)
		require.NoError(t, err)
		assert.False(t, blacklisted)
	})

	t.Run("ExpiredTokenNotStored", func(t *testing.T) {
		before := len(mr.Keys())
		require.NoError(t, tb.BlacklistToken(ctx, "expired-token", time.Now().Add(-time.Hour)))
		assert.Len(t, mr.Keys(), before)
	})

	t.Run("RevokeRejectsForgedToken", func(t *testing.T) {
		err := v.Revoke(ctx, tb, "forged")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("RedisUnavailable", func(t *testing.T) {
		token, err := v.CreateToken("user789", "", time.Hour)
		require.NoError(t, err)

		mr.Close()
		_, err = tb.IsTokenBlacklisted(ctx, token)
		assert.Error(t, err)
		_, err = v.Verify(ctx, token)
		assert.Error(t, err, "verification fails closed")
	})
}
