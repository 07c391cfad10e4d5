package redis

import (
	"context"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
)

// CacheMetrics counts profile cache lookups.
type CacheMetrics interface {
	IncProfileCache(hit bool)
}

// CachedProfileRepository is a cache-aside decorator for a
// business.ProfileRepository. Saves write through to the inner repository and
// then drop the cached entry.
type CachedProfileRepository struct {
	inner   business.ProfileRepository
	cache   Cache
	ttl     time.Duration
	logger  logging.Logger
	metrics CacheMetrics
}

// NewCachedProfileRepository wraps inner. A zero ttl defers to the cache's
// default TTL; a nil metrics disables counting.
func NewCachedProfileRepository(inner business.ProfileRepository, cache Cache, ttl time.Duration, log logging.Logger, metrics CacheMetrics) *CachedProfileRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CachedProfileRepository{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		logger:  log.Named("profile_cache"),
		metrics: metrics,
	}
}

func profileKey(id string) string { return "profile:" + id }

// FindByID serves the profile from the cache, loading it on a miss. Errors
// from the inner repository, including not-found, are returned unchanged and
// never cached.
func (r *CachedProfileRepository) FindByID(ctx context.Context, id string) (*business.Profile, error) {
	hit := true
	p := &business.Profile{}
	err := r.cache.GetOrSet(ctx, profileKey(id), p, r.ttl, func(ctx context.Context) (interface{}, error) {
		hit = false
		return r.inner.FindByID(ctx, id)
	})
	if r.metrics != nil {
		r.metrics.IncProfileCache(hit)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Save persists p and invalidates its cached snapshot.
func (r *CachedProfileRepository) Save(ctx context.Context, p *business.Profile) error {
	if err := r.inner.Save(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

// OnSignificantChange drops the cached snapshot of the changed business, so
// the repository can be subscribed to the change notifier.
func (r *CachedProfileRepository) OnSignificantChange(ctx context.Context, event *business.SignificantChangeEvent) error {
	r.invalidate(ctx, event.BusinessID)
	return nil
}

func (r *CachedProfileRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, profileKey(id)); err != nil {
		r.logger.Warn("failed to invalidate cached profile", logging.String("business_id", id), logging.Err(err))
	}
}
