// Package profile resolves user ids to display names.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfitz/whiteboard/internal/database"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when the directory has no entry for a user
var ErrUserNotFound = errors.New("user not found")

// Directory looks up the display name for a user id
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// GormDirectory reads names from the users table
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a directory on an open GORM connection
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// DisplayName returns the stored name for userID
func (d *GormDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	var user database.User
	err := d.db.WithContext(ctx).Select("id", "display_name").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	if user.DisplayName == "" {
		return "", ErrUserNotFound
	}
	return user.DisplayName, nil
}

// Save creates or updates a user's display name
func (d *GormDirectory) Save(ctx context.Context, userID, displayName, email string) error {
	user := database.User{ID: userID, DisplayName: SanitizeDisplayName(displayName), Email: email}
	err := d.db.WithContext(ctx).
		Where(database.User{ID: userID}).
		Assign(database.User{DisplayName: user.DisplayName, Email: email}).
		FirstOrCreate(&user).Error
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", userID, err)
	}
	return nil
}
