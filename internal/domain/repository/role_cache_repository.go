package repository

import (
	"context"
	"errors"

	"passport/internal/domain/entity"
)

// ErrRoleNotCached is returned when no cached role exists for the user id.
var ErrRoleNotCached = errors.New("role not cached")

// RoleCacheRepository is the durable per-user last-known-role store. It is a
// fallback continuity aid only, never a source of truth: entries are written
// exclusively after a successful profile fetch and never expire automatically.
type RoleCacheRepository interface {
	// Get retrieves the cached role for a user id, or ErrRoleNotCached.
	Get(ctx context.Context, userID string) (*entity.CachedRole, error)

	// Set stores the role for a user id, overwriting any previous entry.
	Set(ctx context.Context, userID string, role entity.Role) error
}
