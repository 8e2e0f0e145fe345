package reconciler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxfield-allison/dnsreconcile/internal/config"
	"github.com/maxfield-allison/dnsreconcile/internal/eventbus"
	"github.com/maxfield-allison/dnsreconcile/internal/store"
	"github.com/maxfield-allison/dnsreconcile/pkg/provider"
	"github.com/maxfield-allison/dnsreconcile/pkg/source"
)

// =============================================================================
// mergeManagedHostnames / dropPreservedHostnames
// =============================================================================

func TestMergeManagedHostnames_MWinsOnConflict(t *testing.T) {
	r := &Reconciler{
		config: Config{
			ManagedHostnames: []config.ManagedHostname{
				{Hostname: "static.example.com", Type: "A", Content: "10.0.0.9", TTL: 120},
			},
		},
		logger: quietLogger(),
	}

	discovered := map[string]*source.Hostname{
		"static.example.com": {Name: "static.example.com", Source: "traefik"},
		"other.example.com":  {Name: "other.example.com", Source: "traefik"},
	}

	r.mergeManagedHostnames(discovered)

	entry, ok := discovered["static.example.com"]
	if !ok {
		t.Fatal("expected managed hostname to remain present")
	}
	if entry.Source != "managed" {
		t.Errorf("expected managed entry to win over discovered source, got %q", entry.Source)
	}
	if entry.RecordHints == nil || entry.RecordHints.Target != "10.0.0.9" || entry.RecordHints.TTL != 120 {
		t.Errorf("expected RecordHints derived from managed hostname config, got %+v", entry.RecordHints)
	}
	if _, ok := discovered["other.example.com"]; !ok {
		t.Error("expected unrelated discovered hostname to remain untouched")
	}
}

func TestMergeManagedHostnames_AddsWhenNotDiscovered(t *testing.T) {
	r := &Reconciler{
		config: Config{
			ManagedHostnames: []config.ManagedHostname{
				{Hostname: "always-on.example.com", Type: "CNAME", Content: "lb.example.com"},
			},
		},
		logger: quietLogger(),
	}

	discovered := map[string]*source.Hostname{}
	r.mergeManagedHostnames(discovered)

	if _, ok := discovered["always-on.example.com"]; !ok {
		t.Fatal("expected managed hostname to be added even when no workload discovered it")
	}
}

func TestDropPreservedHostnames(t *testing.T) {
	r := &Reconciler{
		config: Config{
			PreservedHostnames: []string{"keep.example.com", "*.internal.example.com"},
		},
		logger: quietLogger(),
	}

	discovered := map[string]*source.Hostname{
		"keep.example.com":          {Name: "keep.example.com"},
		"svc.internal.example.com":  {Name: "svc.internal.example.com"},
		"app.example.com":           {Name: "app.example.com"},
	}

	r.dropPreservedHostnames(discovered)

	if _, ok := discovered["keep.example.com"]; ok {
		t.Error("expected exact-match preserved hostname to be dropped")
	}
	if _, ok := discovered["svc.internal.example.com"]; ok {
		t.Error("expected wildcard-match preserved hostname to be dropped")
	}
	if _, ok := discovered["app.example.com"]; !ok {
		t.Error("expected non-matching hostname to survive")
	}
}

func TestDropPreservedHostnames_NormalizationAndWildcardScope(t *testing.T) {
	r := &Reconciler{
		config: Config{
			PreservedHostnames: []string{"exact.example.com", "*.wild.example.com"},
		},
		logger: quietLogger(),
	}

	discovered := map[string]*source.Hostname{
		"exact.example.com":    {Name: "exact.example.com"},
		"EXACT.example.com.":   {Name: "EXACT.example.com."}, // case + trailing dot
		"sub.wild.example.com": {Name: "sub.wild.example.com"},
		"wild.example.com":     {Name: "wild.example.com"}, // wildcard must not match the bare domain
		"other.example.com":    {Name: "other.example.com"},
	}

	r.dropPreservedHostnames(discovered)

	for _, dropped := range []string{"exact.example.com", "EXACT.example.com.", "sub.wild.example.com"} {
		if _, ok := discovered[dropped]; ok {
			t.Errorf("expected %q to be dropped as preserved", dropped)
		}
	}
	for _, kept := range []string{"wild.example.com", "other.example.com"} {
		if _, ok := discovered[kept]; !ok {
			t.Errorf("expected %q to survive", kept)
		}
	}
}

// =============================================================================
// reclaimActionIfOrphaned / grace-period wiring via WithStore
// =============================================================================

func newTestStore(t *testing.T) *store.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := store.Open(path, store.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReclaimActionIfOrphaned_ClearsMarkOnSuccess(t *testing.T) {
	s := newTestStore(t)
	r := &Reconciler{
		store:       s,
		gracePeriod: time.Hour,
		bus:         eventbus.New(eventbus.WithLogger(quietLogger())),
		logger:      quietLogger(),
	}

	// First detection marks the record orphaned.
	if ready := r.readyToDelete("prov1", "reclaimed.example.com", "A"); ready {
		t.Fatal("expected first detection to not be ready to delete")
	}

	tracked, err := s.Get("prov1", orphanKey("reclaimed.example.com", "A"))
	if err != nil {
		t.Fatalf("expected tracked row after first detection: %v", err)
	}
	if tracked.OrphanedAt == nil {
		t.Fatal("expected OrphanedAt to be set after first detection")
	}

	// Hostname reappears with a successful ensure action; orphan mark should clear.
	r.reclaimActionIfOrphaned(Action{
		Type:       ActionCreate,
		Status:     StatusSuccess,
		Provider:   "prov1",
		Hostname:   "reclaimed.example.com",
		RecordType: "A",
	})

	tracked, err = s.Get("prov1", orphanKey("reclaimed.example.com", "A"))
	if err != nil {
		t.Fatalf("expected tracked row to still exist: %v", err)
	}
	if tracked.OrphanedAt != nil {
		t.Error("expected OrphanedAt to be cleared after reclaim")
	}
}

func TestReclaimActionIfOrphaned_AlsoClearsOnAlreadyExistsSkip(t *testing.T) {
	s := newTestStore(t)
	r := &Reconciler{
		store:       s,
		gracePeriod: time.Hour,
		bus:         eventbus.New(eventbus.WithLogger(quietLogger())),
		logger:      quietLogger(),
	}

	r.readyToDelete("prov1", "still-present.example.com", "A")

	r.reclaimActionIfOrphaned(Action{
		Type:       ActionSkip,
		Status:     StatusSkipped,
		Provider:   "prov1",
		Hostname:   "still-present.example.com",
		RecordType: "A",
		Error:      errRecordAlreadyExists,
	})

	tracked, err := s.Get("prov1", orphanKey("still-present.example.com", "A"))
	if err != nil {
		t.Fatalf("expected tracked row: %v", err)
	}
	if tracked.OrphanedAt != nil {
		t.Error("expected a matching already-exists skip to also reclaim the orphan mark")
	}
}

func TestReclaimActionIfOrphaned_IgnoresFailedAndUnrelatedSkips(t *testing.T) {
	s := newTestStore(t)
	r := &Reconciler{
		store:       s,
		gracePeriod: time.Hour,
		bus:         eventbus.New(eventbus.WithLogger(quietLogger())),
		logger:      quietLogger(),
	}

	r.readyToDelete("prov1", "conflicted.example.com", "A")

	r.reclaimActionIfOrphaned(Action{
		Type:       ActionSkip,
		Status:     StatusSkipped,
		Provider:   "prov1",
		Hostname:   "conflicted.example.com",
		RecordType: "A",
		Error:      errRecordTypeConflict,
	})

	tracked, err := s.Get("prov1", orphanKey("conflicted.example.com", "A"))
	if err != nil {
		t.Fatalf("expected tracked row: %v", err)
	}
	if tracked.OrphanedAt == nil {
		t.Error("expected orphan mark to survive a type-conflict skip")
	}
}

func TestReadyToDelete_RespectsGracePeriod(t *testing.T) {
	s := newTestStore(t)
	r := &Reconciler{
		store:       s,
		gracePeriod: time.Hour,
		bus:         eventbus.New(eventbus.WithLogger(quietLogger())),
		logger:      quietLogger(),
	}

	if r.readyToDelete("prov1", "host.example.com", "A") {
		t.Fatal("first detection should never be immediately ready to delete")
	}
	if r.readyToDelete("prov1", "host.example.com", "A") {
		t.Fatal("should still be within grace period on second check")
	}

	// Force past the grace period by rewriting OrphanedAt into the past.
	key := orphanKey("host.example.com", "A")
	tracked, err := s.Get("prov1", key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	tracked.OrphanedAt = &past
	if err := s.Track(tracked); err != nil {
		t.Fatalf("failed to rewrite tracked row: %v", err)
	}

	if !r.readyToDelete("prov1", "host.example.com", "A") {
		t.Error("expected record past its grace period to be ready to delete")
	}
}

func TestReadyToDelete_NoStoreDeletesImmediately(t *testing.T) {
	r := &Reconciler{
		bus:    eventbus.New(eventbus.WithLogger(quietLogger())),
		logger: quietLogger(),
	}
	if !r.readyToDelete("prov1", "host.example.com", "A") {
		t.Error("expected immediate deletion when no store is configured")
	}
}

// =============================================================================
// publishActionEvent
// =============================================================================

func TestPublishActionEvent(t *testing.T) {
	bus := eventbus.New(eventbus.WithLogger(quietLogger()))
	r := &Reconciler{bus: bus, logger: quietLogger()}

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	cases := []struct {
		action   Action
		wantKind eventbus.Kind
		wantNone bool
	}{
		{Action{Type: ActionCreate, Status: StatusSuccess, Hostname: "a.example.com", Provider: "p"}, eventbus.KindRecordCreated, false},
		{Action{Type: ActionUpdate, Status: StatusSuccess, Hostname: "b.example.com", Provider: "p"}, eventbus.KindRecordUpdated, false},
		{Action{Type: ActionDelete, Status: StatusSuccess, Hostname: "c.example.com", Provider: "p"}, eventbus.KindRecordDeleted, false},
		{Action{Type: ActionCreate, Status: StatusFailed, Hostname: "d.example.com", Provider: "p", Error: "boom"}, eventbus.KindError, false},
		{Action{Type: ActionSkip, Status: StatusSkipped, Hostname: "e.example.com", Provider: "p"}, "", true},
	}

	for _, tc := range cases {
		r.publishActionEvent(tc.action)
	}

	got := map[eventbus.Kind]int{}
	draining := true
	for draining {
		select {
		case ev := <-sub.Events():
			got[ev.Kind]++
		default:
			draining = false
		}
	}

	for _, tc := range cases {
		if tc.wantNone {
			continue
		}
		if got[tc.wantKind] == 0 {
			t.Errorf("expected at least one event of kind %s", tc.wantKind)
		}
	}
	if n := got[""]; n != 0 {
		t.Errorf("unexpected event published for skipped action")
	}
}

// =============================================================================
// Reconcile() end-to-end: store + event bus + managed/preserved hostnames
// =============================================================================

func newTestProviderRegistry(t *testing.T, mock *testMockProvider, domains []string, recordType provider.RecordType, target string) *provider.Registry {
	t.Helper()
	logger := quietLogger()
	reg := testProviderRegistry(logger, mock)
	err := reg.CreateInstance(provider.ProviderInstanceConfig{
		Name:       mock.name,
		TypeName:   mock.typeName,
		RecordType: recordType,
		Target:     target,
		TTL:        300,
		Domains:    domains,
	})
	if err != nil {
		t.Fatalf("creating test provider instance: %v", err)
	}
	return reg
}

func TestReconcile_PublishesLifecycleEvents(t *testing.T) {
	logger := quietLogger()
	mock := newTestMockProvider("prov1")
	reg := newTestProviderRegistry(t, mock, []string{"example.com"}, provider.RecordTypeA, "1.2.3.4")

	srcReg := source.NewRegistry(logger)

	bus := eventbus.New(eventbus.WithLogger(logger))
	sub := bus.Subscribe(eventbus.KindReconcileStarted, eventbus.KindReconcileFinished)
	defer sub.Unsubscribe()

	r := New(nil, srcReg, reg,
		WithLogger(logger),
		WithEventBus(bus),
		WithConfig(Config{
			Enabled:           true,
			OwnershipTracking: false,
			CacheTTL:          time.Minute,
		}),
	)

	ctx := context.Background()
	if _, err := r.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	var sawStart, sawFinish bool
	draining := true
	for draining {
		select {
		case ev := <-sub.Events():
			switch ev.Kind {
			case eventbus.KindReconcileStarted:
				sawStart = true
			case eventbus.KindReconcileFinished:
				sawFinish = true
			}
		default:
			draining = false
		}
	}

	if !sawStart {
		t.Error("expected a reconcile_started event")
	}
	if !sawFinish {
		t.Error("expected a reconcile_finished event")
	}
}

func TestReconcile_ManagedHostnameCreatedWithoutWorkload(t *testing.T) {
	logger := quietLogger()
	mock := newTestMockProvider("prov1")
	reg := newTestProviderRegistry(t, mock, []string{"example.com"}, provider.RecordTypeA, "1.2.3.4")

	srcReg := source.NewRegistry(logger)

	r := New(nil, srcReg, reg,
		WithLogger(logger),
		WithConfig(Config{
			Enabled:           true,
			OwnershipTracking: false,
			CacheTTL:          time.Minute,
			ManagedHostnames: []config.ManagedHostname{
				{Hostname: "managed.example.com", Type: "A", Content: "9.9.9.9"},
			},
		}),
	)

	ctx := context.Background()
	if _, err := r.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	created := mock.GetCreatedDNSRecords()
	found := false
	for _, rec := range created {
		if rec.Hostname == "managed.example.com" && rec.Target == "9.9.9.9" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected managed hostname record to be created, got %+v", created)
	}
}

func TestReconcile_OrphanedHostnameTracksGracePeriodInStore(t *testing.T) {
	logger := quietLogger()
	mock := newTestMockProvider("prov1")
	reg := newTestProviderRegistry(t, mock, []string{"example.com"}, provider.RecordTypeA, "1.2.3.4")

	srcReg := source.NewRegistry(logger)
	s := newTestStore(t)

	managed := []config.ManagedHostname{
		{Hostname: "managed.example.com", Type: "A", Content: "9.9.9.9"},
	}

	r := New(nil, srcReg, reg,
		WithLogger(logger),
		WithStore(s),
		WithConfig(Config{
			Enabled:            true,
			CleanupOrphans:     true,
			OwnershipTracking:  false,
			CacheTTL:           time.Minute,
			CleanupGracePeriod: time.Hour,
			ManagedHostnames:   managed,
		}),
	)

	ctx := context.Background()
	result, err := r.Reconcile(ctx)
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	if result.CreatedCount() == 0 {
		t.Fatal("expected the managed hostname's record to be created on the first cycle")
	}

	// Drop the managed hostname so the next cycle treats it as orphaned.
	r.config.ManagedHostnames = nil

	if _, err := r.Reconcile(ctx); err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	tracked, err := s.ListTrackedRecords(store.ListFilter{ProviderName: "prov1"})
	if err != nil {
		t.Fatalf("listing tracked records: %v", err)
	}
	found := false
	for _, row := range tracked {
		if row.Name == "managed.example.com" && row.OrphanedAt != nil {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected managed.example.com to be marked orphaned in the store, got %+v", tracked)
	}

	// Within the grace period, the provider record itself must survive.
	for _, rec := range mock.GetDeleted() {
		if rec.Hostname == "managed.example.com" {
			t.Error("expected orphaned record to be retained during its grace period")
		}
	}
}
