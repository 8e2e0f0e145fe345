// Package reconciler implements the core logic for comparing desired DNS state
// (from sources) with actual DNS state (from providers) and applying changes.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maxfield-allison/dnsreconcile/internal/clock"
	"github.com/maxfield-allison/dnsreconcile/internal/config"
	"github.com/maxfield-allison/dnsreconcile/internal/docker"
	"github.com/maxfield-allison/dnsreconcile/internal/eventbus"
	"github.com/maxfield-allison/dnsreconcile/internal/matcher"
	"github.com/maxfield-allison/dnsreconcile/internal/metrics"
	"github.com/maxfield-allison/dnsreconcile/internal/store"
	"github.com/maxfield-allison/dnsreconcile/pkg/provider"
	"github.com/maxfield-allison/dnsreconcile/pkg/source"
)

// Config holds reconciler configuration options.
type Config struct {
	// DryRun if true, logs changes without applying them.
	DryRun bool

	// CleanupOrphans if true, removes DNS records for missing workloads.
	CleanupOrphans bool

	// OwnershipTracking if true, creates TXT records to mark ownership of DNS records.
	// When orphan cleanup runs, only records with ownership markers will be deleted.
	// This prevents deletion of manually-created DNS records.
	OwnershipTracking bool

	// AdoptExisting if true, creates ownership TXT records for existing DNS records
	// that have matching targets. If false, existing records are left unmanaged.
	AdoptExisting bool

	// ReconcileInterval is the interval between full reconciliation runs.
	// Zero means no automatic reconciliation (only on-demand).
	ReconcileInterval time.Duration

	// Enabled controls whether reconciliation is active.
	// When false, Reconcile() returns immediately without doing anything.
	Enabled bool

	// CacheTTL bounds how long the shared provider cache may be reused
	// across reconciliation cycles before a fresh List() round is forced.
	CacheTTL time.Duration

	// CleanupGracePeriod is how long a hostname must remain orphaned before
	// its records are actually deleted. Zero disables the grace period and
	// deletes orphans on first detection.
	CleanupGracePeriod time.Duration

	// PreservedHostnames lists exact or *.wildcard hostnames that are never
	// touched by reconciliation, even if discovered from a workload.
	PreservedHostnames []string

	// ManagedHostnames are merged into the discovered intent set every
	// cycle regardless of whether any workload currently advertises them.
	ManagedHostnames []config.ManagedHostname
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DryRun:             false,
		CleanupOrphans:     true,
		OwnershipTracking:  true,
		AdoptExisting:      false,
		ReconcileInterval:  60 * time.Second,
		Enabled:            true,
		CacheTTL:           config.DefaultCacheTTL,
		CleanupGracePeriod: config.DefaultCleanupGracePeriod,
	}
}

// Reconciler coordinates DNS record synchronization between sources and providers.
//
// The reconciler:
//  1. Scans Docker workloads (services in Swarm, containers in standalone)
//  2. Extracts hostnames from workload labels using registered sources
//  3. Merges in any statically Managed hostnames and drops Preserved ones
//  4. For each hostname, finds matching provider(s) based on domain patterns
//  5. Ensures DNS records exist for discovered hostnames
//  6. Optionally removes orphan records (hostnames no longer in workloads),
//     subject to CleanupGracePeriod
type Reconciler struct {
	docker    *docker.Client
	sources   *source.Registry
	providers *provider.Registry
	config    Config
	logger    *slog.Logger

	// sharedCache is the provider-record snapshot shared between the
	// Reconciler and any out-of-band consumer (e.g. an Orphan Sweeper
	// running on its own schedule) so they don't force redundant List()
	// round trips against the same providers within CacheTTL.
	sharedCache *provider.ProviderCache

	// store is the durable Record Store backing orphan grace-period
	// bookkeeping. May be nil, in which case orphans are deleted on first
	// detection (no persisted grace period).
	store *store.Manager

	// gracePeriod mirrors config.CleanupGracePeriod for convenient access
	// from orphan.go/graceperiod.go.
	gracePeriod time.Duration

	// bus publishes reconciliation lifecycle events. Never nil; defaults to
	// a private bus with no subscribers if WithEventBus is not supplied.
	bus *eventbus.Bus

	// clock supplies the current public IPv4/IPv6 address for provider
	// targets and RecordHints configured with provider.TargetDynamic. May
	// be nil, in which case dynamic targets always fail to resolve.
	clock *clock.Clock

	// lastDroppedEvents is the bus drop count as of the previous metrics
	// sample, so recordEventBusMetrics can report only the new drops.
	lastDroppedEvents uint64

	// mu protects knownHostnames during concurrent access
	mu sync.RWMutex
	// knownHostnames tracks hostnames discovered in the last reconciliation.
	// Used for orphan detection.
	knownHostnames map[string]struct{}
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// WithStore attaches the durable Record Store used for orphan grace-period
// tracking. Without it, orphan cleanup deletes on first detection.
func WithStore(s *store.Manager) Option {
	return func(r *Reconciler) {
		r.store = s
	}
}

// WithSharedCache attaches a provider cache shared with other schedule-driven
// consumers instead of letting the Reconciler own a private one.
func WithSharedCache(cache *provider.ProviderCache) Option {
	return func(r *Reconciler) {
		r.sharedCache = cache
	}
}

// WithEventBus attaches the event bus reconciliation lifecycle events are
// published to. Without it, the Reconciler owns a private bus with no
// subscribers (publishes are cheap no-ops in that case).
func WithEventBus(bus *eventbus.Bus) Option {
	return func(r *Reconciler) {
		r.bus = bus
	}
}

// WithClock attaches the public-IP Clock used to resolve provider.TargetDynamic
// targets. Without it, hostnames routed to a dynamic target always fail.
func WithClock(c *clock.Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// New creates a new Reconciler with the given dependencies.
//
// The reconciler requires:
//   - docker: Client for listing workloads
//   - sources: Registry of hostname extractors (Traefik, etc.)
//   - providers: Registry of DNS provider instances
func New(
	dockerClient *docker.Client,
	sources *source.Registry,
	providers *provider.Registry,
	opts ...Option,
) *Reconciler {
	cfg := DefaultConfig()
	r := &Reconciler{
		docker:         dockerClient,
		sources:        sources,
		providers:      providers,
		config:         cfg,
		logger:         slog.Default(),
		knownHostnames: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.sharedCache == nil {
		r.sharedCache = provider.NewProviderCache(r.logger)
	}
	if r.bus == nil {
		r.bus = eventbus.New(eventbus.WithLogger(r.logger))
	}
	r.gracePeriod = r.config.CleanupGracePeriod

	return r
}

// Reconcile performs a full reconciliation of DNS records.
//
// This method:
//  1. Lists all Docker workloads
//  2. Extracts hostnames from each workload's labels
//  3. Merges Managed hostnames and drops Preserved ones
//  4. Creates DNS records for new hostnames
//  5. Optionally deletes records for removed hostnames (orphan cleanup)
//
// Returns a Result containing details of all actions taken.
// The result includes timing, counts, and any errors encountered.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	if !r.config.Enabled {
		r.logger.Debug("reconciliation disabled, skipping")
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Info("starting reconciliation",
		slog.Bool("dry_run", r.config.DryRun),
		slog.Bool("cleanup_orphans", r.config.CleanupOrphans),
	)
	r.bus.Publish(eventbus.Event{Kind: eventbus.KindReconcileStarted})

	result := NewResult(r.config.DryRun)

	// Step 1: List all workloads
	var workloads []docker.Workload
	if r.docker != nil {
		var err error
		workloads, err = r.docker.ListWorkloads(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing workloads: %w", err)
		}
	}
	result.WorkloadsScanned = len(workloads)

	mode := docker.ModeStandalone
	if r.docker != nil {
		mode = r.docker.Mode()
	}
	r.logger.Debug("scanned workloads",
		slog.Int("count", len(workloads)),
		slog.String("mode", mode.String()),
	)

	// Step 2: Extract hostnames from each workload
	// Track hostname -> first workload that defined it (for duplicate detection)
	discoveredHostnames := make(map[string]*source.Hostname)
	hostnameOrigins := make(map[string]string) // hostname -> workload name

	for _, workload := range workloads {
		hostnames := r.sources.ExtractAll(ctx, workload.Labels)

		// Validate hostnames and log warnings for invalid ones
		validation := hostnames.ValidateAll()
		for _, inv := range validation.Invalid {
			r.logger.Warn("skipping invalid hostname from workload",
				slog.String("workload", workload.Name),
				slog.String("hostname", inv.Hostname.Name),
				slog.String("source", inv.Hostname.Source),
				slog.String("error", inv.Error.Error()),
			)
			result.HostnamesInvalid++
		}
		hostnames = validation.Valid

		if len(hostnames) > 0 {
			r.logger.Debug("extracted hostnames from workload",
				slog.String("workload", workload.Name),
				slog.Int("count", len(hostnames)),
				slog.Any("hostnames", hostnames.Names()),
			)
		}

		for i := range hostnames {
			hostname := hostnames[i]
			key := source.NormalizeHostname(hostname.Name)
			if existingWorkload, exists := hostnameOrigins[key]; exists {
				// Duplicate hostname detected
				r.logger.Warn("duplicate hostname found in multiple workloads",
					slog.String("hostname", hostname.Name),
					slog.String("first_workload", existingWorkload),
					slog.String("duplicate_workload", workload.Name),
				)
				result.HostnamesDuplicate++
				// First workload wins - don't update hostnameOrigins
			} else {
				hostnameOrigins[key] = workload.Name
				discoveredHostnames[hostname.Name] = &hostname
			}
		}
	}

	// Step 2b: Discover hostnames from static config files (Traefik YAML, etc.)
	fileHostnames := r.sources.DiscoverAll(ctx)
	if len(fileHostnames) > 0 {
		// Validate file-discovered hostnames
		validation := fileHostnames.ValidateAll()
		for _, inv := range validation.Invalid {
			r.logger.Warn("skipping invalid hostname from file",
				slog.String("hostname", inv.Hostname.Name),
				slog.String("source", inv.Hostname.Source),
				slog.String("router", inv.Hostname.Router),
				slog.String("error", inv.Error.Error()),
			)
			result.HostnamesInvalid++
		}
		fileHostnames = validation.Valid

		r.logger.Debug("discovered hostnames from files",
			slog.Int("count", len(fileHostnames)),
			slog.Any("hostnames", fileHostnames.Names()),
		)
		for i := range fileHostnames {
			hostname := fileHostnames[i]
			discoveredHostnames[hostname.Name] = &hostname
		}
	}

	// Step 2c: Merge Managed hostnames ("M wins" on name conflict) and drop
	// Preserved hostnames from the intent set; Managed entries are kept.
	r.mergeManagedHostnames(discoveredHostnames)
	r.dropPreservedHostnames(discoveredHostnames)

	result.HostnamesDiscovered = len(discoveredHostnames)

	r.logger.Info("hostname extraction complete",
		slog.Int("workloads", len(workloads)),
		slog.Int("hostnames", len(discoveredHostnames)),
	)

	// Step 3: Build record cache for all providers (single List() call per provider)
	var cache *recordCache
	if !r.config.DryRun {
		cache = newRecordCache(ctx, r.providers, r.sharedCache, r.config.CacheTTL, r.logger)
	}

	// Step 3b: On the very first tick a Record Store is attached, classify
	// every pre-existing provider record as adopted (appManaged=true, if it
	// matches the discovered intent set by type+name) or merely tracked
	// (appManaged=false, otherwise). No-op on every later tick.
	r.adoptExistingRecords(discoveredHostnames, cache)

	// Step 4: Ensure records exist for all discovered hostnames
	for _, hostname := range discoveredHostnames {
		actions := r.ensureRecord(ctx, hostname, cache)
		for _, action := range actions {
			result.AddAction(action)
			r.reclaimActionIfOrphaned(action)
			r.publishActionEvent(action)
		}
	}

	// Step 5: Orphan cleanup (if enabled)
	if r.config.CleanupOrphans {
		orphanActions := r.cleanupOrphans(ctx, discoveredHostnames, cache)
		for _, action := range orphanActions {
			result.AddAction(action)
			r.publishActionEvent(action)
		}
	}

	// Update known hostnames for next orphan check
	known := make(map[string]struct{}, len(discoveredHostnames))
	for name := range discoveredHostnames {
		known[name] = struct{}{}
	}
	r.mu.Lock()
	r.knownHostnames = known
	r.mu.Unlock()

	result.Complete()

	// Record metrics
	r.recordMetrics(result)

	r.logger.Info("reconciliation complete",
		slog.Int("created", result.CreatedCount()),
		slog.Int("updated", result.UpdatedCount()),
		slog.Int("deleted", result.DeletedCount()),
		slog.Int("failed", result.FailedCount()),
		slog.Int("skipped", len(result.Skipped())),
		slog.Duration("duration", result.Duration()),
	)
	r.bus.Publish(eventbus.Event{
		Kind: eventbus.KindReconcileFinished,
		Attrs: map[string]any{
			"created": result.CreatedCount(),
			"updated": result.UpdatedCount(),
			"deleted": result.DeletedCount(),
			"failed":  result.FailedCount(),
		},
	})

	return result, nil
}

// publishActionEvent translates a completed Action into a lifecycle event,
// when it maps to one the bus tracks. Skipped and pending actions produce no
// event; failed actions produce a KindError event.
func (r *Reconciler) publishActionEvent(action Action) {
	ev := eventbus.Event{
		Hostname: action.Hostname,
		Provider: action.Provider,
		Reason:   action.Error,
	}
	switch {
	case action.Status == StatusFailed:
		ev.Kind = eventbus.KindError
	case action.Status != StatusSuccess:
		return
	case action.Type == ActionCreate:
		ev.Kind = eventbus.KindRecordCreated
	case action.Type == ActionUpdate:
		ev.Kind = eventbus.KindRecordUpdated
	case action.Type == ActionDelete:
		ev.Kind = eventbus.KindRecordDeleted
	default:
		return
	}
	r.bus.Publish(ev)
}

// mergeManagedHostnames adds every configured Managed hostname into
// discovered, overwriting any discovered entry of the same name ("M wins").
func (r *Reconciler) mergeManagedHostnames(discovered map[string]*source.Hostname) {
	for _, mh := range r.config.ManagedHostnames {
		hints := &source.RecordHints{
			Type:   mh.Type,
			Target: mh.Content,
			TTL:    mh.TTL,
		}
		discovered[mh.Hostname] = &source.Hostname{
			Name:        mh.Hostname,
			Source:      "managed",
			RecordHints: hints,
		}
	}
}

// dropPreservedHostnames removes any hostname matching a configured
// Preserved pattern (exact FQDN or *.wildcard) from discovered, so it is
// never created, updated, or targeted by orphan cleanup. Matching is done
// with the same glob matcher provider instances use for domain routing.
// Entries merged from the Managed list are never dropped.
func (r *Reconciler) dropPreservedHostnames(discovered map[string]*source.Hostname) {
	if len(r.config.PreservedHostnames) == 0 {
		return
	}

	patterns := make([]string, len(r.config.PreservedHostnames))
	for i, p := range r.config.PreservedHostnames {
		patterns[i] = source.NormalizeHostname(p)
	}
	preserved, err := matcher.NewDomainMatcher(matcher.DomainMatcherConfig{Includes: patterns})
	if err != nil {
		r.logger.Warn("invalid preserved hostname pattern, skipping preservation for this reconcile",
			slog.String("error", err.Error()))
		return
	}

	for name, h := range discovered {
		if h.Source == "managed" {
			continue
		}
		if preserved.Matches(source.NormalizeHostname(name)) {
			r.logger.Debug("dropping preserved hostname from intent set",
				slog.String("hostname", name),
			)
			delete(discovered, name)
		}
	}
}

// resolveDynamicTarget returns the Clock's current address for recordType,
// failing if no clock is attached or the address is not yet known.
func (r *Reconciler) resolveDynamicTarget(recordType provider.RecordType) (string, error) {
	if r.clock == nil {
		return "", fmt.Errorf("target %q requires a public-IP clock, none configured", provider.TargetDynamic)
	}
	snapshot := r.clock.Status()
	switch recordType {
	case provider.RecordTypeA:
		if snapshot.IPv4 == "" {
			return "", fmt.Errorf("public IPv4 address not yet known")
		}
		return snapshot.IPv4, nil
	case provider.RecordTypeAAAA:
		if snapshot.IPv6 == "" {
			return "", fmt.Errorf("public IPv6 address not yet known")
		}
		return snapshot.IPv6, nil
	default:
		return "", fmt.Errorf("target %q is only valid for A or AAAA records, got %s", provider.TargetDynamic, recordType)
	}
}

// reclaimActionIfOrphaned clears any grace-period orphan mark for a hostname
// whose record was just successfully ensured, covering the case where a
// previously orphaned hostname reappeared in the discovered intent set.
func (r *Reconciler) reclaimActionIfOrphaned(action Action) {
	if action.Provider == "" {
		return
	}
	stillPresent := action.Status == StatusSuccess ||
		(action.Status == StatusSkipped && action.Error == errRecordAlreadyExists)
	if !stillPresent {
		return
	}
	r.reclaimIfOrphaned(action.Provider, action.Hostname, action.RecordType)
}

// ReconcileHostname performs reconciliation for a single hostname.
// This is useful for event-driven updates when a specific workload changes.
// Note: This does not use the record cache since it's a single hostname operation.
func (r *Reconciler) ReconcileHostname(ctx context.Context, hostname string) (*Result, error) {
	if !r.config.Enabled {
		r.logger.Debug("reconciliation disabled, skipping hostname",
			slog.String("hostname", hostname),
		)
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Debug("reconciling single hostname",
		slog.String("hostname", hostname),
		slog.Bool("dry_run", r.config.DryRun),
	)

	result := NewResult(r.config.DryRun)
	result.HostnamesDiscovered = 1

	// No cache for single-hostname reconciliation (not worth it for one query)
	actions := r.ensureRecord(ctx, &source.Hostname{Name: hostname}, nil)
	for _, action := range actions {
		result.AddAction(action)
		r.reclaimActionIfOrphaned(action)
	}

	// Track this hostname as known
	r.mu.Lock()
	r.knownHostnames[hostname] = struct{}{}
	r.mu.Unlock()

	result.Complete()
	return result, nil
}

// RemoveHostname removes DNS records for a hostname that is no longer needed.
// This is useful for event-driven cleanup when a workload is removed.
func (r *Reconciler) RemoveHostname(ctx context.Context, hostname string) (*Result, error) {
	if !r.config.Enabled {
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Debug("removing hostname",
		slog.String("hostname", hostname),
		slog.Bool("dry_run", r.config.DryRun),
	)

	result := NewResult(r.config.DryRun)

	actions := r.deleteRecord(ctx, hostname)
	for _, action := range actions {
		result.AddAction(action)
	}

	// Remove from known hostnames
	r.mu.Lock()
	delete(r.knownHostnames, hostname)
	r.mu.Unlock()

	result.Complete()
	return result, nil
}

// Config returns the current reconciler configuration.
func (r *Reconciler) Config() Config {
	return r.config
}

// SetEnabled enables or disables reconciliation.
func (r *Reconciler) SetEnabled(enabled bool) {
	r.config.Enabled = enabled
	r.logger.Info("reconciliation enabled state changed",
		slog.Bool("enabled", enabled),
	)
}

// SetDryRun enables or disables dry-run mode.
func (r *Reconciler) SetDryRun(dryRun bool) {
	r.config.DryRun = dryRun
	r.logger.Info("dry-run mode changed",
		slog.Bool("dry_run", dryRun),
	)
}

// KnownHostnames returns a copy of the currently known hostnames.
// This is primarily useful for debugging and testing.
func (r *Reconciler) KnownHostnames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hostnames := make([]string, 0, len(r.knownHostnames))
	for h := range r.knownHostnames {
		hostnames = append(hostnames, h)
	}
	return hostnames
}

// RecoverOwnership scans all providers for ownership TXT records and populates
// the knownHostnames map. This should be called once on startup before the first
// reconciliation to enable orphan cleanup for records created before a restart.
//
// Only runs if both CleanupOrphans and OwnershipTracking are enabled.
func (r *Reconciler) RecoverOwnership(ctx context.Context) error {
	if !r.config.CleanupOrphans || !r.config.OwnershipTracking {
		r.logger.Debug("ownership recovery skipped",
			slog.Bool("cleanup_orphans", r.config.CleanupOrphans),
			slog.Bool("ownership_tracking", r.config.OwnershipTracking),
		)
		return nil
	}

	r.logger.Info("recovering ownership state from DNS providers")

	totalRecovered := 0
	for _, inst := range r.providers.All() {
		hostnames, err := inst.RecoverOwnedHostnames(ctx)
		if err != nil {
			r.logger.Warn("failed to recover ownership from provider",
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if len(hostnames) > 0 {
			r.mu.Lock()
			for _, hostname := range hostnames {
				r.knownHostnames[hostname] = struct{}{}
			}
			r.mu.Unlock()

			r.logger.Info("recovered ownership records",
				slog.String("provider", inst.Name()),
				slog.Int("count", len(hostnames)),
			)
			totalRecovered += len(hostnames)
		}
	}

	r.logger.Info("ownership recovery complete",
		slog.Int("total_hostnames", totalRecovered),
	)

	return nil
}

// recordMetrics records Prometheus metrics from a reconciliation result.
func (r *Reconciler) recordMetrics(result *Result) {
	// Record reconciliation outcome
	status := "success"
	if result.HasErrors() {
		status = "error"
	}
	metrics.ReconciliationsTotal.WithLabelValues(status).Inc()

	// Record duration
	metrics.ReconciliationDuration.Observe(result.Duration().Seconds())

	// Record workload and hostname counts
	metrics.WorkloadsScanned.Set(float64(result.WorkloadsScanned))
	metrics.HostnamesDiscovered.Set(float64(result.HostnamesDiscovered))

	// Record per-action metrics
	for _, action := range result.Actions {
		switch action.Type {
		case ActionCreate:
			if action.Status == StatusSuccess {
				metrics.RecordsCreatedTotal.WithLabelValues(action.Provider).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.Provider, "create").Inc()
			}
		case ActionDelete:
			if action.Status == StatusSuccess {
				metrics.RecordsDeletedTotal.WithLabelValues(action.Provider).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.Provider, "delete").Inc()
			}
		case ActionSkip:
			reason := "unknown"
			if action.Error != "" {
				reason = action.Error
			}
			// Normalize common skip reasons
			if reason == "no matching provider" {
				reason = "no_provider"
			}
			metrics.RecordsSkippedTotal.WithLabelValues(reason).Inc()
		}
	}

	r.recordStoreMetrics()
	r.recordEventBusMetrics()
}

// recordEventBusMetrics advances the dropped-event counter by however many
// new drops occurred since the last reconciliation (the bus only exposes a
// running total, never resets).
func (r *Reconciler) recordEventBusMetrics() {
	current := r.bus.DroppedCount()
	if delta := current - r.lastDroppedEvents; delta > 0 {
		metrics.EventQueueDroppedTotal.Add(float64(delta))
	}
	r.lastDroppedEvents = current
}

// recordStoreMetrics publishes per-provider tracked/orphaned record gauges
// from the durable store. No-op when no store is configured.
func (r *Reconciler) recordStoreMetrics() {
	if r.store == nil {
		return
	}
	for _, inst := range r.providers.All() {
		name := inst.Name()
		tracked, err := r.store.ListTrackedRecords(store.ListFilter{ProviderName: name})
		if err != nil {
			continue
		}
		orphaned := 0
		for _, t := range tracked {
			if t.OrphanedAt != nil {
				orphaned++
			}
		}
		metrics.TrackedRecordsTotal.WithLabelValues(name).Set(float64(len(tracked)))
		metrics.OrphanedRecordsTotal.WithLabelValues(name).Set(float64(orphaned))
	}
}
