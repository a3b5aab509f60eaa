package database

import (
	"fmt"
	"strings"
)

// Redis key layouts shared by every process that talks to the same Redis
const (
	blacklistTokenPrefix = "blacklist:token:"
	displayNamePrefix    = "profile:name:"
)

// BlacklistTokenKey builds the revoked-token key for a token hash
func BlacklistTokenKey(tokenHash string) string {
	return blacklistTokenPrefix + tokenHash
}

// DisplayNameKey builds the cached display name key for a user
func DisplayNameKey(userID string) string {
	return displayNamePrefix + userID
}

// ParseDisplayNameKey returns the user id a display name key was built from
func ParseDisplayNameKey(key string) (string, error) {
	userID, ok := strings.CutPrefix(key, displayNamePrefix)
	if !ok || userID == "" {
		return "", fmt.Errorf("invalid display name key format: %s", key)
	}
	return userID, nil
}
