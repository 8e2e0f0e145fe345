// Package store implements the durable Record Store: a bbolt-backed mapping
// from (providerName, providerRecordId) to TrackedRecord, plus a persisted
// provider-record cache and a settings table, as three buckets in a single
// data file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketTrackedRecords = []byte("tracked_records")
	bucketProviderCache  = []byte("provider_cache")
	bucketSettings       = []byte("settings")
)

// ErrConflict is returned by Track when an app-managed row is tracked and
// its (provider, type, name) triple already identifies a different
// app-managed row.
var ErrConflict = errors.New("store: conflicting (provider, type, name) entry")

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: record not found")

// TrackedRecord is the row the Record Store owns for every DNS record the
// system has created or adopted.
type TrackedRecord struct {
	ProviderName    string            `json:"providerName"`
	ProviderRecordID string           `json:"providerRecordId"`
	Type            string            `json:"type"`
	Name            string            `json:"name"`
	Content         string            `json:"content"`
	TTL             int               `json:"ttl"`
	AppManaged      bool              `json:"appManaged"`
	OrphanedAt      *time.Time        `json:"orphanedAt,omitempty"`
	FirstSeenAt     time.Time         `json:"firstSeenAt"`
	LastUpdatedAt   time.Time         `json:"lastUpdatedAt"`
	Extras          map[string]string `json:"extras,omitempty"`
}

// key returns the bbolt key for this row: provider record identity is the
// primary key per spec §6 (tracked_records is keyed by (provider, provider_record_id)).
func (r TrackedRecord) key() []byte {
	return []byte(r.ProviderName + "\x00" + r.ProviderRecordID)
}

// typeNameKey returns the secondary uniqueness key used to detect conflicting
// app-managed rows: (providerName, type, normalized name).
func typeNameKey(providerName, recordType, name string) string {
	return providerName + "\x00" + recordType + "\x00" + normalize(name)
}

func normalize(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	for len(b) > 0 && b[len(b)-1] == '.' {
		b = b[:len(b)-1]
	}
	return string(b)
}

// CachedRecord is a row in the provider_cache table: a snapshot of what the
// provider reported, independent of whether it is tracked/app-managed.
type CachedRecord struct {
	ProviderName     string            `json:"providerName"`
	ProviderRecordID string            `json:"providerRecordId"`
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	Content          string            `json:"content"`
	TTL              int               `json:"ttl"`
	Extras           map[string]string `json:"extras,omitempty"`
	FetchedAt        time.Time         `json:"fetchedAt"`
}

func (r CachedRecord) key() []byte {
	return []byte(r.ProviderName + "\x00" + r.ProviderRecordID)
}

// Manager owns the bbolt database handle and implements the Record Store's
// track/untrack/query operations. Its method set mirrors the
// track/untrack/isTracked/markOrphaned shape used across the pack's
// persistent-state managers, adapted to bbolt's Update/View transaction API.
type Manager struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Open opens (creating if necessary) the bbolt data file at path and ensures
// all three tables exist.
func Open(path string, opts ...Option) (*Manager, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", path, err)
	}

	m := &Manager{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketTrackedRecords, bucketProviderCache, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("creating bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return m, nil
}

// Close releases the underlying data file.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Track upserts row by (providerName, providerRecordId). If row is
// app-managed and another app-managed row already holds the same
// (providerName, type, name) with a different providerRecordId, Track
// returns ErrConflict without modifying the store —
// the caller (Reconciler) is expected to update that existing row's id
// instead of creating a duplicate, per the Record Store's track() contract.
func (m *Manager) Track(record TrackedRecord) error {
	now := record.LastUpdatedAt
	if record.FirstSeenAt.IsZero() {
		record.FirstSeenAt = now
	}

	return m.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTrackedRecords)

		wantTypeName := typeNameKey(record.ProviderName, record.Type, record.Name)

		var conflict bool
		_ = bucket.ForEach(func(k, v []byte) error {
			var existing TrackedRecord
			if err := json.Unmarshal(v, &existing); err != nil {
				return nil
			}
			if existing.AppManaged &&
				typeNameKey(existing.ProviderName, existing.Type, existing.Name) == wantTypeName &&
				existing.ProviderRecordID != record.ProviderRecordID {
				conflict = true
			}
			return nil
		})
		if conflict && record.AppManaged {
			return ErrConflict
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encoding tracked record: %w", err)
		}
		return bucket.Put(record.key(), data)
	})
}

// Untrack removes a tracked row entirely (used once a grace-period delete
// has succeeded against the provider).
func (m *Manager) Untrack(providerName, providerRecordID string) error {
	key := []byte(providerName + "\x00" + providerRecordID)
	return m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTrackedRecords).Delete(key)
	})
}

// Get returns the tracked row for (providerName, providerRecordId), or
// ErrNotFound.
func (m *Manager) Get(providerName, providerRecordID string) (TrackedRecord, error) {
	key := []byte(providerName + "\x00" + providerRecordID)
	var out TrackedRecord
	err := m.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTrackedRecords).Get(key)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &out)
	})
	return out, err
}

// IsTracked reports whether a row exists for (providerName, providerRecordId)
// and, if so, whether it is app-managed.
func (m *Manager) IsTracked(providerName, providerRecordID string) (tracked bool, appManaged bool) {
	rec, err := m.Get(providerName, providerRecordID)
	if err != nil {
		return false, false
	}
	return true, rec.AppManaged
}

// MarkOrphaned sets orphanedAt := now for an app-managed tracked row.
// Invariant 3 (§3): orphanedAt may be non-null only when appManaged is true.
func (m *Manager) MarkOrphaned(providerName, providerRecordID string, now time.Time) error {
	return m.mutate(providerName, providerRecordID, func(r *TrackedRecord) error {
		if !r.AppManaged {
			return fmt.Errorf("cannot mark orphaned: %s/%s is not app-managed", providerName, providerRecordID)
		}
		r.OrphanedAt = &now
		r.LastUpdatedAt = now
		return nil
	})
}

// UnmarkOrphaned clears orphanedAt ("reclaimed": an intent re-matched a
// previously orphaned record).
func (m *Manager) UnmarkOrphaned(providerName, providerRecordID string, now time.Time) error {
	return m.mutate(providerName, providerRecordID, func(r *TrackedRecord) error {
		r.OrphanedAt = nil
		r.LastUpdatedAt = now
		return nil
	})
}

func (m *Manager) mutate(providerName, providerRecordID string, fn func(*TrackedRecord) error) error {
	key := []byte(providerName + "\x00" + providerRecordID)
	return m.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTrackedRecords)
		data := bucket.Get(key)
		if data == nil {
			return ErrNotFound
		}
		var rec TrackedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		encoded, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bucket.Put(key, encoded)
	})
}

// ListFilter narrows ListTrackedRecords. Zero values mean "don't filter on
// this field".
type ListFilter struct {
	ProviderName string
	Type         string
	AppManaged   *bool
	OnlyOrphaned bool
}

// ListTrackedRecords returns all rows matching filter.
func (m *Manager) ListTrackedRecords(filter ListFilter) ([]TrackedRecord, error) {
	var out []TrackedRecord
	err := m.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTrackedRecords).ForEach(func(k, v []byte) error {
			var rec TrackedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			if filter.ProviderName != "" && rec.ProviderName != filter.ProviderName {
				return nil
			}
			if filter.Type != "" && rec.Type != filter.Type {
				return nil
			}
			if filter.AppManaged != nil && rec.AppManaged != *filter.AppManaged {
				return nil
			}
			if filter.OnlyOrphaned && rec.OrphanedAt == nil {
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// ReplaceProviderCache overwrites the cached snapshot for one provider with
// records, used after a fresh refreshRecordCache() round trip.
func (m *Manager) ReplaceProviderCache(providerName string, records []CachedRecord) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketProviderCache)

		var stale [][]byte
		prefix := []byte(providerName + "\x00")
		cur := bucket.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cur.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}

		for _, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := bucket.Put(rec.key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ProviderCache returns the cached snapshot for one provider.
func (m *Manager) ProviderCache(providerName string) ([]CachedRecord, error) {
	var out []CachedRecord
	prefix := []byte(providerName + "\x00")
	err := m.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketProviderCache).Cursor()
		for k, v := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cur.Next() {
			var rec CachedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// SetSetting persists an arbitrary string setting (e.g. "first_run_done").
func (m *Manager) SetSetting(key, value string) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(key), []byte(value))
	})
}

// GetSetting returns a persisted setting, or ("", false) if unset.
func (m *Manager) GetSetting(key string) (string, bool) {
	var value string
	var ok bool
	_ = m.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSettings).Get([]byte(key))
		if data != nil {
			value = string(data)
			ok = true
		}
		return nil
	})
	return value, ok
}
