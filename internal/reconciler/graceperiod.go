package reconciler

import (
	"log/slog"
	"time"

	"github.com/maxfield-allison/dnsreconcile/internal/eventbus"
	"github.com/maxfield-allison/dnsreconcile/internal/store"
)

// orphanKey identifies a (hostname, record type) pair within a provider for
// grace-period bookkeeping. The Record Store's primary key is
// (providerName, providerRecordId); since providers don't uniformly expose
// stable record ids (see provider.Record.ProviderID, which file-based
// providers leave empty), the hostname+type pair is used as the tracked id
// within a provider's namespace.
func orphanKey(hostname, recordType string) string {
	return hostname + "\x00" + recordType
}

// readyToDelete reports whether an orphaned (hostname, provider, type) is
// past its grace period and safe to delete now. The first time a hostname is
// seen orphaned it is recorded with orphanedAt=now and readyToDelete returns
// false so the actual provider delete only happens on a later sweep.
//
// With no store configured, or a gracePeriod <= 0, deletion proceeds immediately
// on first detection, matching pre-grace-period behavior.
func (r *Reconciler) readyToDelete(providerName, hostname, recordType string) bool {
	if r.store == nil || r.gracePeriod <= 0 {
		return true
	}

	now := time.Now()
	key := orphanKey(hostname, recordType)

	tracked, err := r.store.Get(providerName, key)
	if err != nil {
		if trackErr := r.store.Track(store.TrackedRecord{
			ProviderName:     providerName,
			ProviderRecordID: key,
			Type:             recordType,
			Name:             hostname,
			AppManaged:       true,
			OrphanedAt:       &now,
			FirstSeenAt:      now,
			LastUpdatedAt:    now,
		}); trackErr != nil {
			r.logger.Warn("failed to mark orphaned record in store",
				slog.String("hostname", hostname),
				slog.String("provider", providerName),
				slog.String("error", trackErr.Error()),
			)
		} else {
			r.logger.Info("marked record orphaned, awaiting grace period",
				slog.String("hostname", hostname),
				slog.String("provider", providerName),
				slog.String("type", recordType),
				slog.Duration("grace_period", r.gracePeriod),
			)
			r.bus.Publish(eventbus.Event{
				Kind:     eventbus.KindRecordOrphaned,
				Hostname: hostname,
				Provider: providerName,
			})
		}
		return false
	}

	if tracked.OrphanedAt == nil {
		if err := r.store.MarkOrphaned(providerName, key, now); err != nil {
			r.logger.Warn("failed to mark orphaned record in store",
				slog.String("hostname", hostname),
				slog.String("provider", providerName),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	if now.Sub(*tracked.OrphanedAt) < r.gracePeriod {
		r.logger.Debug("orphan still within grace period",
			slog.String("hostname", hostname),
			slog.String("provider", providerName),
			slog.Duration("elapsed", now.Sub(*tracked.OrphanedAt)),
			slog.Duration("grace_period", r.gracePeriod),
		)
		return false
	}

	return true
}

// trackEnsured persists a TrackedRecord, appManaged=true, for a hostname this
// reconcile pass confirmed is correct (freshly created, updated, or already
// matching with the desired target). This must run before the next tick's
// orphan sweep can see the record at all, otherwise a record the Reconciler
// just ensured would have no store row to distinguish it from an orphan
// candidate. Existing FirstSeenAt is preserved across calls; OrphanedAt is
// cleared since a record reaching this path is, by definition, not missing.
func (r *Reconciler) trackEnsured(providerName, hostname, recordType, target string, ttl int) {
	if r.store == nil {
		return
	}

	now := time.Now()
	key := orphanKey(hostname, recordType)
	firstSeen := now
	if existing, err := r.store.Get(providerName, key); err == nil {
		firstSeen = existing.FirstSeenAt
	}

	if err := r.store.Track(store.TrackedRecord{
		ProviderName:     providerName,
		ProviderRecordID: key,
		Type:             recordType,
		Name:             hostname,
		Content:          target,
		TTL:              ttl,
		AppManaged:       true,
		FirstSeenAt:      firstSeen,
		LastUpdatedAt:    now,
	}); err != nil {
		r.logger.Warn("failed to track ensured record in store",
			slog.String("hostname", hostname),
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
	}
}

// forgetOrphan removes the grace-period tracking row after a record has
// actually been deleted from the provider.
func (r *Reconciler) forgetOrphan(providerName, hostname, recordType string) {
	if r.store == nil {
		return
	}
	if err := r.store.Untrack(providerName, orphanKey(hostname, recordType)); err != nil {
		r.logger.Debug("failed to untrack deleted record",
			slog.String("hostname", hostname),
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
	}
}

// reclaimIfOrphaned clears any grace-period mark for a hostname that has
// reappeared in the discovered intent set before its grace period expired.
func (r *Reconciler) reclaimIfOrphaned(providerName, hostname, recordType string) {
	if r.store == nil {
		return
	}
	key := orphanKey(hostname, recordType)
	tracked, err := r.store.Get(providerName, key)
	if err != nil || tracked.OrphanedAt == nil {
		return
	}
	if err := r.store.UnmarkOrphaned(providerName, key, time.Now()); err != nil {
		r.logger.Debug("failed to reclaim orphaned record",
			slog.String("hostname", hostname),
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("reclaimed previously orphaned record",
		slog.String("hostname", hostname),
		slog.String("provider", providerName),
	)
	r.bus.Publish(eventbus.Event{
		Kind:     eventbus.KindRecordReclaimed,
		Hostname: hostname,
		Provider: providerName,
	})
}
