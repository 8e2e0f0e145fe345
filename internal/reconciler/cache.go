// Package reconciler implements the core logic for comparing desired DNS state
// (from sources) with actual DNS state (from providers) and applying changes.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/maxfield-allison/dnsreconcile/pkg/provider"
)

// recordCache is the reconciler's view onto a shared provider.ProviderCache.
// It is built once at the start of each reconciliation cycle, refreshing the
// underlying cache only if it is older than cacheTTL - the Orphan Sweeper,
// running on its own schedule, can reuse the same snapshot without forcing
// another round of provider List() calls.
type recordCache struct {
	inner  *provider.ProviderCache
	logger *slog.Logger
}

// newRecordCache refreshes (if stale) and wraps the shared provider cache.
func newRecordCache(ctx context.Context, providers *provider.Registry, shared *provider.ProviderCache, cacheTTL time.Duration, logger *slog.Logger) *recordCache {
	if shared.NeedsRefresh(cacheTTL) {
		shared.Refresh(ctx, providers)
	} else {
		logger.Debug("reusing provider cache, still within ttl",
			slog.Duration("ttl", cacheTTL),
			slog.Time("last_updated", shared.LastUpdated()),
		)
	}

	return &recordCache{inner: shared, logger: logger}
}

// getExistingRecords returns cached DNS data records for a hostname from a
// specific provider (A, AAAA, CNAME, MX, SRV, CAA, NS; excludes TXT
// ownership markers). Returns false if the provider's cache is unavailable.
func (c *recordCache) getExistingRecords(providerName, hostname string) ([]provider.Record, bool) {
	return c.inner.GetRecords(providerName, hostname)
}

// getAllRecordsForHostname is an alias of getExistingRecords used by the
// Orphan Sweeper to know which record types actually exist before deleting.
func (c *recordCache) getAllRecordsForHostname(providerName, hostname string) ([]provider.Record, bool) {
	return c.inner.GetRecords(providerName, hostname)
}

// allHostnamesForProvider returns every hostname with at least one cached
// record for providerName, used by first-run adoption to scan existing
// provider state without forcing another List() call.
func (c *recordCache) allHostnamesForProvider(providerName string) []string {
	return c.inner.AllHostnames(providerName)
}

// hasOwnershipRecord checks if an ownership TXT record exists for the given
// hostname. Returns false if the provider cache is unavailable.
func (c *recordCache) hasOwnershipRecord(providerName, hostname string) bool {
	return c.inner.HasOwnershipRecord(providerName, hostname)
}
