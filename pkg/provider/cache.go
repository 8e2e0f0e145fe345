package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProviderCache holds a snapshot of DNS records from all registered
// providers, indexed by hostname. Unlike a cache rebuilt unconditionally on
// every reconciliation tick, ProviderCache tracks lastUpdated and exposes
// NeedsRefresh(ttl) so the Orphan Sweeper's own schedule can reuse a cache
// the Reconciler already populated instead of re-listing every provider.
type ProviderCache struct {
	mu          sync.RWMutex
	records     map[string]map[string][]Record // provider -> hostname -> records
	lastUpdated time.Time
	logger      *slog.Logger
}

// NewProviderCache creates an empty cache. Call Refresh before reading.
func NewProviderCache(logger *slog.Logger) *ProviderCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderCache{
		records: make(map[string]map[string][]Record),
		logger:  logger,
	}
}

// NeedsRefresh reports whether the cache is older than ttl. A zero-value
// (never refreshed) cache always needs refreshing.
func (c *ProviderCache) NeedsRefresh(ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastUpdated.IsZero() {
		return true
	}
	return time.Since(c.lastUpdated) >= ttl
}

// LastUpdated returns the time of the most recent successful Refresh.
func (c *ProviderCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// Seed replaces the cache contents directly without querying providers,
// stamping lastUpdated as of now. Used to restore a snapshot (e.g. from the
// Record Store on startup) and by tests that need precise control over
// cache contents.
func (c *ProviderCache) Seed(records map[string]map[string][]Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = records
	c.lastUpdated = time.Now()
}

// Refresh re-queries every provider in the registry and replaces the
// cache contents. A provider that fails to list is recorded as an
// unavailable entry (nil map) rather than aborting the whole refresh.
func (c *ProviderCache) Refresh(ctx context.Context, providers *Registry) {
	fresh := make(map[string]map[string][]Record)

	for _, inst := range providers.All() {
		providerRecords, err := inst.Provider.List(ctx)
		if err != nil {
			c.logger.Warn("failed to cache records for provider",
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			fresh[inst.Name()] = nil
			continue
		}

		byHostname := make(map[string][]Record)
		for _, r := range providerRecords {
			byHostname[r.Hostname] = append(byHostname[r.Hostname], r)
		}
		fresh[inst.Name()] = byHostname

		c.logger.Debug("cached records for provider",
			slog.String("provider", inst.Name()),
			slog.Int("total_records", len(providerRecords)),
			slog.Int("unique_hostnames", len(byHostname)),
		)
	}

	c.mu.Lock()
	c.records = fresh
	c.lastUpdated = time.Now()
	c.mu.Unlock()
}

// dataRecordTypes are the record types considered part of a hostname's
// desired DNS state. TXT ownership markers are excluded.
var dataRecordTypes = map[RecordType]bool{
	RecordTypeA:     true,
	RecordTypeAAAA:  true,
	RecordTypeCNAME: true,
	RecordTypeMX:    true,
	RecordTypeSRV:   true,
	RecordTypeCAA:   true,
	RecordTypeNS:    true,
}

// GetRecords returns cached data records (excluding TXT ownership markers)
// for a hostname from a specific provider. The second return value reports
// whether the provider's cache is populated at all.
func (c *ProviderCache) GetRecords(providerName, hostname string) ([]Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byHostname, exists := c.records[providerName]
	if !exists || byHostname == nil {
		return nil, false
	}

	var filtered []Record
	for _, r := range byHostname[hostname] {
		if dataRecordTypes[r.Type] {
			filtered = append(filtered, r)
		}
	}
	return filtered, true
}

// HasOwnershipRecord reports whether an ownership TXT record exists for
// hostname under providerName.
func (c *ProviderCache) HasOwnershipRecord(providerName, hostname string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byHostname, exists := c.records[providerName]
	if !exists || byHostname == nil {
		return false
	}

	ownershipName := OwnershipRecordName(hostname)
	for _, r := range byHostname[ownershipName] {
		if r.Type == RecordTypeTXT && r.Target == OwnershipValue {
			return true
		}
	}
	return false
}

// AllHostnames returns every hostname with at least one cached record for
// providerName, used by the Orphan Sweeper to enumerate candidates without
// a fresh List() call.
func (c *ProviderCache) AllHostnames(providerName string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byHostname, exists := c.records[providerName]
	if !exists || byHostname == nil {
		return nil
	}

	hostnames := make([]string, 0, len(byHostname))
	for hostname := range byHostname {
		hostnames = append(hostnames, hostname)
	}
	return hostnames
}
