// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"passport/internal/domain/entity"
)

// Domain-specific errors for profile persistence.
// This allows the application layer to handle specific outcomes without depending on database-specific errors.
var (
	// ErrProfileNotFound is returned when no profile row exists for the user id.
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileRepository defines the standard operations against the profile store.
type ProfileRepository interface {
	// FindByUserID retrieves the durable profile record for an identity-provider user id.
	FindByUserID(ctx context.Context, userID string) (*entity.Profile, error)

	// UpdateDisplayFields issues a partial write correcting display metadata.
	// It must never touch the role or enabled columns.
	UpdateDisplayFields(ctx context.Context, userID string, fields entity.DisplayFields) error
}
