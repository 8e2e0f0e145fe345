// Package clock provides the public-IP refresher that resolves the "auto"
// target (provider.TargetDynamic) of A/AAAA records. It is consulted only for
// that target; records whose target is set explicitly, by the provider
// instance or a hostname hint, do not use it.
package clock

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/maxfield-allison/dnsreconcile/pkg/httputil"
)

// DefaultIPv4Endpoint and DefaultIPv6Endpoint are public IP-echo services.
// Either can be overridden via WithIPv4Endpoint/WithIPv6Endpoint, e.g. to
// point at a self-hosted echo service in tests or air-gapped deployments.
const (
	DefaultIPv4Endpoint = "https://api.ipify.org"
	DefaultIPv6Endpoint = "https://api6.ipify.org"
)

// Snapshot is the last-known public address state, including staleness.
type Snapshot struct {
	IPv4       string
	IPv6       string
	UpdatedAt  time.Time
	LastError  error
}

// Clock polls public-IP echo endpoints on an interval and retains the
// last-known-good value on failure (soft failure per spec §4.1): a
// transient lookup error never clears an already-known address, it only
// updates LastError and leaves UpdatedAt stale for callers to notice.
type Clock struct {
	mu       sync.RWMutex
	snapshot Snapshot

	httpClient   *http.Client
	ipv4Endpoint string
	ipv6Endpoint string
	interval     time.Duration
	logger       *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// Option configures a Clock.
type Option func(*Clock)

// WithLogger sets the clock's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Clock) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient overrides the HTTP client used for IP lookups.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Clock) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithIPv4Endpoint overrides the IPv4 echo endpoint.
func WithIPv4Endpoint(url string) Option {
	return func(c *Clock) {
		if url != "" {
			c.ipv4Endpoint = url
		}
	}
}

// WithIPv6Endpoint overrides the IPv6 echo endpoint.
func WithIPv6Endpoint(url string) Option {
	return func(c *Clock) {
		if url != "" {
			c.ipv6Endpoint = url
		}
	}
}

// New creates a Clock that refreshes every interval once Start is called.
func New(interval time.Duration, opts ...Option) *Clock {
	c := &Clock{
		httpClient:   httputil.DefaultClient(),
		ipv4Endpoint: DefaultIPv4Endpoint,
		ipv6Endpoint: DefaultIPv6Endpoint,
		interval:     interval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start performs an initial synchronous refresh, then refreshes on the
// configured interval until ctx is canceled or Stop is called.
func (c *Clock) Start(ctx context.Context) {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	c.refresh(ctx)

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.refresh(ctx)
			}
		}
	}()
}

// Stop halts the background refresh goroutine and waits for it to exit.
func (c *Clock) Stop() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
}

// Status returns the last-known address snapshot.
func (c *Clock) Status() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Clock) refresh(ctx context.Context) {
	v4, errV4 := c.fetch(ctx, c.ipv4Endpoint)
	v6, errV6 := c.fetch(ctx, c.ipv6Endpoint)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if errV4 == nil && v4 != "" {
		c.snapshot.IPv4 = v4
		c.snapshot.UpdatedAt = now
	}
	if errV6 == nil && v6 != "" {
		c.snapshot.IPv6 = v6
		c.snapshot.UpdatedAt = now
	}

	switch {
	case errV4 != nil:
		c.snapshot.LastError = errV4
		c.logger.Warn("ipv4 lookup failed, retaining last-known address",
			slog.String("error", errV4.Error()),
			slog.String("last_known", c.snapshot.IPv4),
		)
	case errV6 != nil:
		c.snapshot.LastError = errV6
		c.logger.Debug("ipv6 lookup failed, retaining last-known address",
			slog.String("error", errV6.Error()),
		)
	default:
		c.snapshot.LastError = nil
	}
}

func (c *Clock) fetch(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{endpoint: endpoint, status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

type httpStatusError struct {
	endpoint string
	status   int
}

func (e *httpStatusError) Error() string {
	return "unexpected status " + http.StatusText(e.status) + " from " + e.endpoint
}
