package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"passport/config"
	"passport/internal/domain/entity"
	"passport/internal/domain/repository"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) repository.RoleCacheRepository {
	t.Helper()

	cache, closeFn, err := NewRoleCache(&config.Config{
		RoleCache: &config.RoleCacheConfig{Path: t.TempDir()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	return cache
}

func TestNewRoleCacheRequiresPath(t *testing.T) {
	_, _, err := NewRoleCache(&config.Config{})
	assert.Error(t, err)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", entity.RoleAdmin))

	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, cached.Role)
	assert.False(t, cached.CachedAt.IsZero())
}

func TestGetMissingUserReturnsNotCached(t *testing.T) {
	cache := newTestCache(t)

	_, err := cache.Get(context.Background(), "nobody")

	assert.True(t, errors.Is(err, repository.ErrRoleNotCached))
}

func TestSetOverwritesPreviousRole(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", entity.RoleUser))
	require.NoError(t, cache.Set(ctx, "user-1", entity.RoleSuperAdmin))

	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleSuperAdmin, cached.Role)
}

func TestEntriesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{RoleCache: &config.RoleCacheConfig{Path: dir}}
	ctx := context.Background()

	cache, closeFn, err := NewRoleCache(cfg)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "user-1", entity.RoleAdmin))
	require.NoError(t, closeFn())

	reopened, closeFn, err := NewRoleCache(cfg)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	cached, err := reopened.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, cached.Role)
}

func TestCorruptEntryTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	cache, closeFn, err := NewRoleCache(&config.Config{RoleCache: &config.RoleCacheConfig{Path: dir}})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "roles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roles", "user-1.json"), []byte("{not json"), 0o644))

	_, err = cache.Get(context.Background(), "user-1")
	assert.True(t, errors.Is(err, repository.ErrRoleNotCached))
}

func TestUnknownRoleValueTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	cache, closeFn, err := NewRoleCache(&config.Config{RoleCache: &config.RoleCacheConfig{Path: dir}})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "roles"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "roles", "user-1.json"),
		[]byte(`{"role":"emperor","cached_at":"2025-06-01T12:00:00Z"}`), 0o644))

	_, err = cache.Get(context.Background(), "user-1")
	assert.True(t, errors.Is(err, repository.ErrRoleNotCached))
}
