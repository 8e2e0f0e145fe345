package reconciler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/maxfield-allison/dnsreconcile/internal/store"
	"github.com/maxfield-allison/dnsreconcile/pkg/provider"
	"github.com/maxfield-allison/dnsreconcile/pkg/source"
)

// =============================================================================
// Record Store wiring tests
// These exercise the Reconciler paths that persist TrackedRecords: the
// per-ensure tracking in actions.go/graceperiod.go and the first-run
// adoption pass in adopt.go.
// =============================================================================

func openTestStore(t *testing.T) *store.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newTestReconcilerWithStore(t *testing.T, s *store.Manager, mock *testMockProvider, domains []string) (*Reconciler, *provider.Registry) {
	t.Helper()
	logger := quietLogger()

	providers := provider.NewRegistry(logger)
	providers.RegisterFactory("mock", func(_ string, _ map[string]string) (provider.Provider, error) {
		return mock, nil
	})
	if err := providers.CreateInstance(provider.ProviderInstanceConfig{
		Name:       mock.Name(),
		TypeName:   "mock",
		RecordType: provider.RecordTypeA,
		Target:     "10.0.0.1",
		TTL:        300,
		Domains:    domains,
	}); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	r := New(nil, source.NewRegistry(logger), providers,
		WithConfig(DefaultConfig()),
		WithLogger(logger),
		WithStore(s),
	)
	return r, providers
}

func TestEnsureRecordForProvider_TracksNewlyCreatedRecord(t *testing.T) {
	s := openTestStore(t)
	mock := newTestMockProvider("test-dns")
	r, providers := newTestReconcilerWithStore(t, s, mock, []string{"*.example.com"})
	inst, _ := providers.Get("test-dns")

	hostname := &source.Hostname{Name: "app.example.com", Source: "test"}
	action := r.ensureRecordForProvider(context.Background(), hostname, inst, nil)

	if action.Status != StatusSuccess || action.Type != ActionCreate {
		t.Fatalf("action = %+v, want success create", action)
	}

	key := orphanKey(hostname.Name, string(provider.RecordTypeA))
	tracked, err := s.Get("test-dns", key)
	if err != nil {
		t.Fatalf("store.Get() error = %v, want a tracked row", err)
	}
	if !tracked.AppManaged {
		t.Error("AppManaged = false, want true for a record the Reconciler just created")
	}
	if tracked.Content != "10.0.0.1" {
		t.Errorf("Content = %q, want %q", tracked.Content, "10.0.0.1")
	}
}

func TestEnsureRecordForProvider_TracksExactMatchWithoutCreating(t *testing.T) {
	s := openTestStore(t)
	mock := newTestMockProvider("test-dns")
	mock.AddRecord(provider.Record{Hostname: "app.example.com", Type: provider.RecordTypeA, Target: "10.0.0.1"})
	r, providers := newTestReconcilerWithStore(t, s, mock, []string{"*.example.com"})
	inst, _ := providers.Get("test-dns")

	hostname := &source.Hostname{Name: "app.example.com", Source: "test"}
	action := r.ensureRecordForProvider(context.Background(), hostname, inst, nil)

	if action.Type != ActionSkip {
		t.Fatalf("action.Type = %v, want ActionSkip (record already matches)", action.Type)
	}
	if len(mock.GetCreatedDNSRecords()) != 0 {
		t.Error("expected no Create call for an already-correct record")
	}

	key := orphanKey(hostname.Name, string(provider.RecordTypeA))
	tracked, err := s.Get("test-dns", key)
	if err != nil {
		t.Fatalf("store.Get() error = %v, want invariant 5 to hold even on the unchanged branch", err)
	}
	if !tracked.AppManaged {
		t.Error("AppManaged = false, want true")
	}
}

func TestAdoptExistingRecords_ClassifiesByIntentSet(t *testing.T) {
	s := openTestStore(t)
	mock := newTestMockProvider("test-dns")
	r, providers := newTestReconcilerWithStore(t, s, mock, []string{"*.example.com"})
	inst, _ := providers.Get("test-dns")

	logger := quietLogger()
	cache := &recordCache{logger: logger, inner: provider.NewProviderCache(logger)}
	cache.inner.Seed(map[string]map[string][]provider.Record{
		"test-dns": {
			"managed.example.com":   {{Hostname: "managed.example.com", Type: provider.RecordTypeA, Target: "10.0.0.5"}},
			"unmanaged.example.com": {{Hostname: "unmanaged.example.com", Type: provider.RecordTypeA, Target: "10.0.0.9"}},
		},
	})

	discovered := map[string]*source.Hostname{
		"managed.example.com": {Name: "managed.example.com", Source: "test"},
	}

	r.adoptExistingRecords(discovered, cache)
	_ = inst

	managedRow, err := s.Get("test-dns", orphanKey("managed.example.com", string(provider.RecordTypeA)))
	if err != nil {
		t.Fatalf("store.Get(managed) error = %v", err)
	}
	if !managedRow.AppManaged {
		t.Error("managed.example.com: AppManaged = false, want true (matches discovered intent set)")
	}

	unmanagedRow, err := s.Get("test-dns", orphanKey("unmanaged.example.com", string(provider.RecordTypeA)))
	if err != nil {
		t.Fatalf("store.Get(unmanaged) error = %v", err)
	}
	if unmanagedRow.AppManaged {
		t.Error("unmanaged.example.com: AppManaged = true, want false (not in discovered intent set)")
	}

	done, ok := s.GetSetting(settingFirstRunDone)
	if !ok || done != "true" {
		t.Errorf("GetSetting(first_run_done) = (%q, %v), want (\"true\", true)", done, ok)
	}
}

func TestAdoptExistingRecords_NoOpOnSecondTick(t *testing.T) {
	s := openTestStore(t)
	mock := newTestMockProvider("test-dns")
	r, _ := newTestReconcilerWithStore(t, s, mock, []string{"*.example.com"})

	logger := quietLogger()
	cache := &recordCache{logger: logger, inner: provider.NewProviderCache(logger)}
	cache.inner.Seed(map[string]map[string][]provider.Record{
		"test-dns": {
			"unmanaged.example.com": {{Hostname: "unmanaged.example.com", Type: provider.RecordTypeA, Target: "10.0.0.9"}},
		},
	})

	r.adoptExistingRecords(nil, cache)

	// Simulate the record changing ownership state out from under a second
	// adoption pass - if adoption ran again it would stomp this back to
	// false, since it is no longer in the (empty) discovered set either way.
	if err := s.Track(store.TrackedRecord{
		ProviderName:     "test-dns",
		ProviderRecordID: orphanKey("unmanaged.example.com", string(provider.RecordTypeA)),
		Type:             string(provider.RecordTypeA),
		Name:             "unmanaged.example.com",
		AppManaged:       true,
	}); err != nil {
		t.Fatalf("store.Track() error = %v", err)
	}

	r.adoptExistingRecords(nil, cache)

	row, err := s.Get("test-dns", orphanKey("unmanaged.example.com", string(provider.RecordTypeA)))
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if !row.AppManaged {
		t.Error("second adoptExistingRecords call mutated an already-tracked row; it should be a no-op once first_run_done is set")
	}
}
