package cache

import (
	"context"

	"github.com/artemk/menulive/internal/logger"
)

// Invalidator deletes response-cache entries when underlying data changes.
// Every mutation endpoint must invalidate before firing the notification
// fan-out, so a viewer who re-fetches in response to a push observes fresh
// data rather than a stale cached copy. Store failures are absorbed: a failed
// delete means at worst one TTL window of staleness.
type Invalidator struct {
	store  Store
	prefix string
	log    *logger.Logger
}

// NewInvalidator creates an invalidator over a cache store.
// Parameters:
//   - store: backing cache store.
//   - prefix: cache key namespace (must match the middleware's).
//   - log: logger for absorbed failures.
// Returns:
//   - *Invalidator: initialized invalidator.
func NewInvalidator(store Store, prefix string, log *logger.Logger) *Invalidator {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Invalidator{store: store, prefix: prefix, log: log}
}

// InvalidateKey removes the cache entry for one request path.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - path: request path whose entry should be dropped.
// Returns:
//   - bool: true if an entry was removed.
func (i *Invalidator) InvalidateKey(ctx context.Context, path string) bool {
	removed, err := i.store.Delete(ctx, Key(i.prefix, path))
	if err != nil {
		i.log.WithError(err).Warn("Cache invalidation failed")
		return false
	}
	return removed
}

// InvalidatePattern removes every cache entry whose path matches a glob
// pattern.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - pattern: glob over request paths, e.g. "/api/v1/menus/borscht*".
// Returns:
//   - int64: number of entries removed.
func (i *Invalidator) InvalidatePattern(ctx context.Context, pattern string) int64 {
	count, err := i.store.DeletePattern(ctx, Key(i.prefix, pattern))
	if err != nil {
		i.log.WithError(err).Warn("Cache pattern invalidation failed")
	}
	return count
}

// InvalidateTenant drops every cached read for one tenant's public menu.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - slug: restaurant slug.
// Returns:
//   - int64: number of entries removed.
func (i *Invalidator) InvalidateTenant(ctx context.Context, slug string) int64 {
	return i.InvalidatePattern(ctx, "/api/v1/menus/"+slug+"*")
}
