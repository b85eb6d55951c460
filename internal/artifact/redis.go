package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nikhilbhutani/aidoctor/internal/cache"
	"github.com/nikhilbhutani/aidoctor/internal/session"
)

// KeyPrefix namespaces registry entries in Redis.
const KeyPrefix = "aidoctor:artifact:"

// RedisRegistry shares artifacts between API replicas and the archive worker.
type RedisRegistry struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisRegistry stores entries in c; ttl of zero keeps them forever.
func NewRedisRegistry(c *cache.Cache, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{cache: c, ttl: ttl}
}

func (r *RedisRegistry) Put(ctx context.Context, a Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := r.cache.Set(ctx, a.SessionID.String(), a, r.ttl); err != nil {
		return fmt.Errorf("register artifact %s: %w", a.SessionID, err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, id session.ID) (*Artifact, error) {
	var a Artifact
	if err := r.cache.Get(ctx, id.String(), &a); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup artifact %s: %w", id, err)
	}
	return &a, nil
}

func (r *RedisRegistry) SetArchiveKey(ctx context.Context, id session.ID, key string) error {
	a, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	a.ArchiveKey = key
	if err := r.cache.Replace(ctx, id.String(), a); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrNotFound
		}
		return fmt.Errorf("update artifact %s: %w", id, err)
	}
	return nil
}
