package profile

import (
	"context"

	"github.com/ericfitz/whiteboard/internal/slogging"
)

// Resolve picks the name to show for userID: candidate when it is a real
// name, otherwise the directory entry, otherwise the user id itself. ok is
// false when the user id fallback was used. dir may be nil.
func Resolve(ctx context.Context, dir Directory, userID, candidate string) (name string, ok bool) {
	if cleaned := SanitizeDisplayName(candidate); !IsGeneric(cleaned) {
		return cleaned, true
	}

	if dir != nil {
		looked, err := dir.DisplayName(ctx, userID)
		if err != nil {
			slogging.Get().Debug("Display name lookup failed for user %s: %v", userID, err)
		} else if cleaned := SanitizeDisplayName(looked); !IsGeneric(cleaned) {
			return cleaned, true
		}
	}

	return userID, false
}
