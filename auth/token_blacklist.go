package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ericfitz/whiteboard/internal/database"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/redis/go-redis/v9"
)

// TokenBlacklist stores revoked tokens in Redis until they would have expired
type TokenBlacklist struct {
	redis *redis.Client
}

// NewTokenBlacklist creates a new token blacklist service
func NewTokenBlacklist(redisClient *redis.Client) *TokenBlacklist {
	slogging.Get().Info("Initializing token blacklist service")
	return &TokenBlacklist{redis: redisClient}
}

func blacklistKey(tokenString string) (key, shortHash string) {
	hash := sha256.Sum256([]byte(tokenString))
	h := hex.EncodeToString(hash[:])
	return database.BlacklistTokenKey(h), h[:16] + "..."
}

// BlacklistToken revokes a token until expiresAt. Already expired tokens are ignored.
func (tb *TokenBlacklist) BlacklistToken(ctx context.Context, tokenString string, expiresAt time.Time) error {
	logger := slogging.Get()

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		logger.Debug("Token already expired, skipping blacklist expiration_time=%v", expiresAt)
		return nil
	}

	key, short := blacklistKey(tokenString)
	if err := tb.redis.Set(ctx, key, "blacklisted", ttl).Err(); err != nil {
		logger.Error("Failed to store token in blacklist token_hash=%v error=%v", short, err)
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	logger.Info("Token blacklisted token_hash=%v ttl_seconds=%v", short, int(ttl.Seconds()))
	return nil
}

// IsTokenBlacklisted checks if a token has been revoked
func (tb *TokenBlacklist) IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error) {
	key, short := blacklistKey(tokenString)

	exists, err := tb.redis.Exists(ctx, key).Result()
	if err != nil {
		slogging.Get().Error("Failed to check token blacklist token_hash=%v error=%v", short, err)
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return exists > 0, nil
}
