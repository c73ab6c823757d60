// Package cache provides the durable role cache used when profile resolution
// is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"passport/config"
	"passport/internal/domain/entity"
	"passport/internal/domain/repository"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// roleCache persists the last successfully fetched role per user in a blob
// bucket. Entries survive process restarts, which is the whole point: new
// sessions can fall back to the last known role while the profile store is
// unreachable.
type roleCache struct {
	bucket *blob.Bucket
}

// cachedRoleRecord is the stored JSON shape.
type cachedRoleRecord struct {
	Role     string    `json:"role"`
	CachedAt time.Time `json:"cached_at"`
}

// NewRoleCache opens a file-backed bucket at the configured path. The
// returned close function releases the bucket and must be called on shutdown.
func NewRoleCache(cfg *config.Config) (repository.RoleCacheRepository, func() error, error) {
	if cfg.RoleCache == nil || cfg.RoleCache.Path == "" {
		return nil, nil, errors.New("role cache path must be provided")
	}

	bucket, err := fileblob.OpenBucket(cfg.RoleCache.Path, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open role cache bucket")
	}

	return &roleCache{bucket: bucket}, bucket.Close, nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("roles/%s.json", userID)
}

func (c *roleCache) Get(ctx context.Context, userID string) (*entity.CachedRole, error) {
	data, err := c.bucket.ReadAll(ctx, cacheKey(userID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, repository.ErrRoleNotCached
		}

		return nil, errors.Wrap(err, "failed to read cached role")
	}

	var record cachedRoleRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt entry is treated as absent rather than fatal.
		return nil, repository.ErrRoleNotCached
	}

	role := entity.Role(record.Role)
	if !role.IsValid() {
		return nil, repository.ErrRoleNotCached
	}

	return &entity.CachedRole{Role: role, CachedAt: record.CachedAt}, nil
}

func (c *roleCache) Set(ctx context.Context, userID string, role entity.Role) error {
	record := cachedRoleRecord{Role: role.String(), CachedAt: time.Now()}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode cached role")
	}

	if err := c.bucket.WriteAll(ctx, cacheKey(userID), data, nil); err != nil {
		return errors.Wrap(err, "failed to write cached role")
	}

	return nil
}
