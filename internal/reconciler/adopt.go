// Package reconciler implements the core logic for comparing desired DNS state
// (from sources) with actual DNS state (from providers) and applying changes.
package reconciler

import (
	"log/slog"
	"time"

	"github.com/maxfield-allison/dnsreconcile/internal/store"
	"github.com/maxfield-allison/dnsreconcile/pkg/provider"
	"github.com/maxfield-allison/dnsreconcile/pkg/source"
)

// settingFirstRunDone is the Record Store setting key marking that the
// one-time adoption pass below has already run.
const settingFirstRunDone = "first_run_done"

// adoptExistingRecords runs once, on the first tick a Record Store is
// attached: every ProviderRecord already present at a provider that matches
// the discovered intent set (H ∪ M) by (type, name) is adopted
// appManaged=true, exactly as if the Reconciler had just created it itself.
// Every other pre-existing record is tracked appManaged=false - visible to
// inspection, but never an orphan-delete candidate.
//
// Without this pass the Record Store starts empty, and a manually-created
// record that later disappears from a provider would be indistinguishable
// from one the Reconciler is actually responsible for.
func (r *Reconciler) adoptExistingRecords(discovered map[string]*source.Hostname, cache *recordCache) {
	if r.store == nil || cache == nil {
		return
	}
	if _, done := r.store.GetSetting(settingFirstRunDone); done {
		return
	}

	desired := r.desiredRecordTypesByProvider(discovered)

	now := time.Now()
	adopted, tracked := 0, 0
	for _, inst := range r.providers.All() {
		providerName := inst.Name()
		for _, hostname := range cache.allHostnamesForProvider(providerName) {
			records, ok := cache.getAllRecordsForHostname(providerName, hostname)
			if !ok {
				continue
			}
			wanted := desired[providerName][hostname]

			for _, rec := range records {
				if rec.Type == provider.RecordTypeTXT {
					continue
				}

				key := orphanKey(hostname, string(rec.Type))
				if _, err := r.store.Get(providerName, key); err == nil {
					continue // already has a row, e.g. this tick's own ensure pass
				}

				appManaged := wanted[rec.Type]
				if err := r.store.Track(store.TrackedRecord{
					ProviderName:     providerName,
					ProviderRecordID: key,
					Type:             string(rec.Type),
					Name:             hostname,
					Content:          rec.Target,
					AppManaged:       appManaged,
					FirstSeenAt:      now,
					LastUpdatedAt:    now,
				}); err != nil {
					r.logger.Warn("failed to adopt existing record into store",
						slog.String("hostname", hostname),
						slog.String("provider", providerName),
						slog.String("error", err.Error()),
					)
					continue
				}
				if appManaged {
					adopted++
				} else {
					tracked++
				}
			}
		}
	}

	if err := r.store.SetSetting(settingFirstRunDone, "true"); err != nil {
		r.logger.Warn("failed to persist first-run adoption marker",
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("first-run adoption complete",
		slog.Int("adopted_app_managed", adopted),
		slog.Int("tracked_unmanaged", tracked),
	)
}

// desiredRecordTypesByProvider resolves, for every hostname in the discovered
// intent set, which record type each matching provider instance would create
// or update for it - the same RecordHints-aware resolution
// ensureRecordForProvider uses - so adoption can match "(type, name)" instead
// of name alone.
func (r *Reconciler) desiredRecordTypesByProvider(discovered map[string]*source.Hostname) map[string]map[string]map[provider.RecordType]bool {
	result := make(map[string]map[string]map[provider.RecordType]bool)

	for name, hostname := range discovered {
		var instances []*provider.ProviderInstance
		if hostname.RecordHints != nil && hostname.RecordHints.Provider != "" {
			if inst, ok := r.providers.Get(hostname.RecordHints.Provider); ok {
				instances = []*provider.ProviderInstance{inst}
			}
		} else {
			instances = r.providers.MatchingProviders(name)
		}

		for _, inst := range instances {
			recordType := inst.RecordType
			if hostname.RecordHints != nil && hostname.RecordHints.Type != "" {
				recordType = provider.RecordType(hostname.RecordHints.Type)
			}

			byHostname, ok := result[inst.Name()]
			if !ok {
				byHostname = make(map[string]map[provider.RecordType]bool)
				result[inst.Name()] = byHostname
			}
			types, ok := byHostname[name]
			if !ok {
				types = make(map[provider.RecordType]bool)
				byHostname[name] = types
			}
			types[recordType] = true
		}
	}

	return result
}
