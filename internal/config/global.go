package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Global configuration defaults.
const (
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultDryRun             = false
	DefaultCleanupOrphans     = true
	DefaultOwnershipTracking  = true
	DefaultAdoptExisting      = false
	DefaultTTL                = 300
	DefaultReconcileInterval  = 60 * time.Second
	DefaultHealthPort         = 8080
	DefaultDockerHost         = "unix:///var/run/docker.sock"
	DefaultDockerMode         = "auto"
	DefaultSource             = "traefik"

	DefaultPollInterval       = 60 * time.Second
	DefaultCacheTTL           = 5 * time.Minute
	DefaultIPRefreshInterval  = 5 * time.Minute
	DefaultCleanupGracePeriod = 15 * time.Minute
	DefaultOperationMode      = "managed"
	DefaultStorePath          = "/var/lib/dnsreconcile/store.db"
)

// ManagedHostname is one parsed entry of the MANAGED_HOSTNAMES compact
// format: "hostname:type[:content[:ttl[:flag]]]". A managed hostname is
// merged into the discovered intent set every reconciliation ("M wins" on
// conflict with a discovered hostname of the same name), independent of
// whether any workload currently advertises it.
type ManagedHostname struct {
	Hostname string
	Type     string
	Content  string
	TTL      int
	Flag     string
}

// GlobalConfig holds application-wide settings.
// These are parsed from DNSRECONCILE_* environment variables.
type GlobalConfig struct {
	// Logging configuration
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Behavior
	DryRun            bool          // If true, don't make actual DNS changes
	CleanupOrphans    bool          // If true, delete DNS records for removed workloads
	OwnershipTracking bool          // If true, use TXT records to track record ownership
	AdoptExisting     bool          // If true, adopt existing DNS records by creating ownership TXT records
	DefaultTTL        int           // Default TTL for records if not specified per-provider
	ReconcileInterval time.Duration // How often to reconcile DNS records
	HealthPort        int           // Port for health/metrics endpoints

	// Docker connection
	DockerHost string // Docker socket path or TCP URL
	DockerMode string // auto, swarm, standalone

	// Source
	Source string // traefik, labels, or custom source name

	// Scheduling and caching (spec-mandated unprefixed env vars)
	PollInterval           time.Duration // POLL_INTERVAL_MS
	CacheTTL               time.Duration // CACHE_TTL_MINUTES
	IPRefreshInterval      time.Duration // IP_REFRESH_INTERVAL_MS
	CleanupGracePeriod     time.Duration // CLEANUP_GRACE_PERIOD_MINUTES
	PreservedHostnames     []string      // PRESERVED_HOSTNAMES (exact FQDN or *.wildcard)
	ManagedHostnames       []ManagedHostname
	DNSProvider            string // DNS_PROVIDER
	OperationMode          string // OPERATION_MODE: additive, managed, authoritative

	// StorePath is the path to the bbolt database backing the durable
	// tracked-record store (orphan grace periods, provider cache snapshots).
	StorePath string // DNSRECONCILE_STORE_PATH
}

// loadGlobalConfig loads global configuration from environment variables.
// Returns a list of validation errors (may be empty).
func loadGlobalConfig() (*GlobalConfig, []string) {
	var errs []string

	cfg := &GlobalConfig{
		LogLevel:   getEnv("DNSRECONCILE_LOG_LEVEL"),
		LogFormat:  getEnv("DNSRECONCILE_LOG_FORMAT"),
		DockerHost: getEnv("DNSRECONCILE_DOCKER_HOST"),
		DockerMode: getEnv("DNSRECONCILE_DOCKER_MODE"),
		Source:     getEnv("DNSRECONCILE_SOURCE"),
	}

	// Apply defaults for empty values
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.DockerHost == "" {
		cfg.DockerHost = DefaultDockerHost
	}
	if cfg.DockerMode == "" {
		cfg.DockerMode = DefaultDockerMode
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}

	// Validate log level
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("DNSRECONCILE_LOG_LEVEL: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	// Validate log format
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "json", "text":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("DNSRECONCILE_LOG_FORMAT: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	// Validate Docker mode
	cfg.DockerMode = strings.ToLower(cfg.DockerMode)
	switch cfg.DockerMode {
	case "auto", "swarm", "standalone":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("DNSRECONCILE_DOCKER_MODE: invalid value %q (must be auto, swarm, or standalone)", cfg.DockerMode))
	}

	// Parse DRY_RUN
	if dryRunStr := getEnv("DNSRECONCILE_DRY_RUN"); dryRunStr != "" {
		cfg.DryRun = parseBool(dryRunStr, DefaultDryRun)
	} else {
		cfg.DryRun = DefaultDryRun
	}

	// Parse CLEANUP_ORPHANS
	if cleanupStr := getEnv("DNSRECONCILE_CLEANUP_ORPHANS"); cleanupStr != "" {
		cfg.CleanupOrphans = parseBool(cleanupStr, DefaultCleanupOrphans)
	} else {
		cfg.CleanupOrphans = DefaultCleanupOrphans
	}

	// Parse OWNERSHIP_TRACKING
	if ownershipStr := getEnv("DNSRECONCILE_OWNERSHIP_TRACKING"); ownershipStr != "" {
		cfg.OwnershipTracking = parseBool(ownershipStr, DefaultOwnershipTracking)
	} else {
		cfg.OwnershipTracking = DefaultOwnershipTracking
	}

	// Parse ADOPT_EXISTING
	if adoptStr := getEnv("DNSRECONCILE_ADOPT_EXISTING"); adoptStr != "" {
		cfg.AdoptExisting = parseBool(adoptStr, DefaultAdoptExisting)
	} else {
		cfg.AdoptExisting = DefaultAdoptExisting
	}

	// Parse DEFAULT_TTL
	if ttlStr := getEnv("DNSRECONCILE_DEFAULT_TTL"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DNSRECONCILE_DEFAULT_TTL: invalid integer %q", ttlStr))
		} else if ttl < 1 {
			errs = append(errs, "DNSRECONCILE_DEFAULT_TTL: must be at least 1")
		} else {
			cfg.DefaultTTL = ttl
		}
	} else {
		cfg.DefaultTTL = DefaultTTL
	}

	// Parse RECONCILE_INTERVAL (supports Go duration format: 60s, 5m, etc.)
	if intervalStr := getEnv("DNSRECONCILE_RECONCILE_INTERVAL"); intervalStr != "" {
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DNSRECONCILE_RECONCILE_INTERVAL: invalid duration %q (use format like 60s, 5m)", intervalStr))
		} else if interval < time.Second {
			errs = append(errs, "DNSRECONCILE_RECONCILE_INTERVAL: must be at least 1s")
		} else {
			cfg.ReconcileInterval = interval
		}
	} else {
		cfg.ReconcileInterval = DefaultReconcileInterval
	}

	// Parse HEALTH_PORT
	if portStr := getEnv("DNSRECONCILE_HEALTH_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DNSRECONCILE_HEALTH_PORT: invalid integer %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("DNSRECONCILE_HEALTH_PORT: must be between 1 and 65535, got %d", port))
		} else {
			cfg.HealthPort = port
		}
	} else {
		cfg.HealthPort = DefaultHealthPort
	}

	errs = append(errs, applySpecMandatedFields(cfg)...)

	return cfg, errs
}

// applySpecMandatedFields parses DNSRECONCILE_STORE_PATH and the unprefixed
// global env vars (no DNSRECONCILE_ prefix, not file-configurable) into cfg. Shared between
// loadGlobalConfig and mergeGlobalConfig so env var precedence and
// validation behave identically whether or not a YAML config file is used.
func applySpecMandatedFields(cfg *GlobalConfig) []string {
	var errs []string

	cfg.StorePath = getEnv("DNSRECONCILE_STORE_PATH")
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath
	}

	// Parse POLL_INTERVAL_MS (spec-mandated, unprefixed, milliseconds)
	if ms := getEnv("POLL_INTERVAL_MS"); ms != "" {
		if d, err := parseMillis(ms); err != nil {
			errs = append(errs, fmt.Sprintf("POLL_INTERVAL_MS: %s", err))
		} else {
			cfg.PollInterval = d
		}
	} else {
		cfg.PollInterval = DefaultPollInterval
	}

	// Parse CACHE_TTL_MINUTES (spec-mandated, unprefixed, minutes)
	if mins := getEnv("CACHE_TTL_MINUTES"); mins != "" {
		if d, err := parseMinutes(mins); err != nil {
			errs = append(errs, fmt.Sprintf("CACHE_TTL_MINUTES: %s", err))
		} else {
			cfg.CacheTTL = d
		}
	} else {
		cfg.CacheTTL = DefaultCacheTTL
	}

	// Parse IP_REFRESH_INTERVAL_MS
	if ms := getEnv("IP_REFRESH_INTERVAL_MS"); ms != "" {
		if d, err := parseMillis(ms); err != nil {
			errs = append(errs, fmt.Sprintf("IP_REFRESH_INTERVAL_MS: %s", err))
		} else {
			cfg.IPRefreshInterval = d
		}
	} else {
		cfg.IPRefreshInterval = DefaultIPRefreshInterval
	}

	// Parse CLEANUP_GRACE_PERIOD_MINUTES
	if mins := getEnv("CLEANUP_GRACE_PERIOD_MINUTES"); mins != "" {
		if d, err := parseMinutes(mins); err != nil {
			errs = append(errs, fmt.Sprintf("CLEANUP_GRACE_PERIOD_MINUTES: %s", err))
		} else {
			cfg.CleanupGracePeriod = d
		}
	} else {
		cfg.CleanupGracePeriod = DefaultCleanupGracePeriod
	}

	// Parse PRESERVED_HOSTNAMES (comma-separated, same convention as per-provider domain lists)
	cfg.PreservedHostnames = splitPatterns(getEnv("PRESERVED_HOSTNAMES"))

	// Parse MANAGED_HOSTNAMES (comma-separated compact entries); malformed
	// entries are skipped and logged rather than failing the whole config.
	cfg.ManagedHostnames = parseManagedHostnames(splitPatterns(getEnv("MANAGED_HOSTNAMES")))

	cfg.DNSProvider = getEnv("DNS_PROVIDER")

	cfg.OperationMode = strings.ToLower(getEnv("OPERATION_MODE"))
	if cfg.OperationMode == "" {
		cfg.OperationMode = DefaultOperationMode
	}
	switch cfg.OperationMode {
	case "additive", "managed", "authoritative":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("OPERATION_MODE: invalid value %q (must be additive, managed, or authoritative)", cfg.OperationMode))
	}

	return errs
}

// parseMillis parses a millisecond-count env var into a time.Duration.
func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if ms < 0 {
		return 0, fmt.Errorf("must be non-negative, got %d", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parseMinutes parses a minute-count env var into a time.Duration.
func parseMinutes(s string) (time.Duration, error) {
	mins, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if mins < 0 {
		return 0, fmt.Errorf("must be non-negative, got %d", mins)
	}
	return time.Duration(mins) * time.Minute, nil
}

// parseManagedHostnames parses compact "hostname:type[:content[:ttl[:flag]]]"
// entries. An entry with too few fields or a non-numeric ttl is skipped and
// logged, following the teacher's per-field skip-and-log-on-error convention
// rather than failing the entire configuration.
func parseManagedHostnames(entries []string) []ManagedHostname {
	var parsed []ManagedHostname
	index := make(map[string]int)
	for _, entry := range entries {
		fields := strings.Split(entry, ":")
		if len(fields) < 2 {
			slogWarnSkippedManagedHostname(entry, "expected at least hostname:type")
			continue
		}

		mh := ManagedHostname{
			Hostname: strings.TrimSpace(fields[0]),
			Type:     strings.ToUpper(strings.TrimSpace(fields[1])),
		}
		if mh.Hostname == "" || mh.Type == "" {
			slogWarnSkippedManagedHostname(entry, "hostname and type are required")
			continue
		}

		if len(fields) >= 3 {
			mh.Content = strings.TrimSpace(fields[2])
		}
		if len(fields) >= 4 && fields[3] != "" {
			ttl, err := strconv.Atoi(fields[3])
			if err != nil {
				slogWarnSkippedManagedHostname(entry, "ttl must be an integer")
				continue
			}
			mh.TTL = ttl
		}
		if len(fields) >= 5 {
			mh.Flag = strings.TrimSpace(fields[4])
		}

		// Two entries sharing (type, name): the last one parsed wins.
		key := mh.Type + "|" + strings.ToLower(mh.Hostname)
		if i, dup := index[key]; dup {
			slog.Default().Warn("duplicate managed hostname entry, discarding earlier one",
				slog.String("hostname", parsed[i].Hostname),
				slog.String("type", parsed[i].Type),
			)
			parsed[i] = mh
			continue
		}
		index[key] = len(parsed)
		parsed = append(parsed, mh)
	}
	return parsed
}

// slogWarnSkippedManagedHostname logs a malformed MANAGED_HOSTNAMES entry
// that was skipped during parsing.
func slogWarnSkippedManagedHostname(entry, reason string) {
	slog.Default().Warn("skipping malformed managed hostname entry",
		slog.String("entry", entry),
		slog.String("reason", reason),
	)
}
