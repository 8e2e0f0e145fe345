// Package container provides a Source implementation for extracting hostnames
// from "dns.*" labels on Docker containers/services.
//
// This package parses Docker container labels in two formats:
//
// 1. Simple hostname (uses provider defaults for type/content):
//
//	dns.hostname=app.example.com
//
// 2. Named records (explicit control per record):
//
//	dns.records.myapp.hostname=app.example.com
//	dns.records.myapp.type=A
//	dns.records.myapp.content=192.0.2.100
//	dns.records.myapp.provider=internal-dns
//	dns.records.myapp.ttl=300
//
// For SRV records:
//
//	dns.records.mc.hostname=_minecraft._tcp.mc.example.com
//	dns.records.mc.type=SRV
//	dns.records.mc.content=mc-server.example.com
//	dns.records.mc.port=25565
//	dns.records.mc.priority=0
//	dns.records.mc.weight=5
package container

import (
	"context"
	"log/slog"

	"github.com/maxfield-allison/dnsreconcile/pkg/source"
)

const sourceName = "container"

// Container implements the source.Source interface for extracting hostnames
// from "dns.*" container labels.
type Container struct {
	parser *Parser
	logger *slog.Logger
}

// Option is a functional option for configuring Container.
type Option func(*Container)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// New creates a new Container source.
func New(opts ...Option) *Container {
	c := &Container{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.parser = NewParser(WithParserLogger(c.logger))

	return c
}

// Name returns the source identifier.
func (c *Container) Name() string {
	return sourceName
}

// Extract parses "dns.*" labels and returns discovered hostnames.
//
// This method looks for:
//   - dns.hostname=<hostname> (simple format)
//   - dns.records.<name>.hostname=<hostname> (named record format)
//
// Returns an empty slice if no dns.* labels are found.
// Malformed labels are logged and skipped.
func (c *Container) Extract(ctx context.Context, labels map[string]string) ([]source.Hostname, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	extractions := c.parser.ExtractHostnames(labels)

	hostnames := make([]source.Hostname, 0, len(extractions))
	for _, e := range extractions {
		h := source.Hostname{
			Name:   e.Hostname,
			Source: sourceName,
			Router: e.RecordName, // Use record name as router identifier
		}

		// Copy record hints if present
		if e.HasHints() {
			h.RecordHints = &source.RecordHints{
				Type:     e.Type,
				Target:   e.Target,
				TTL:      e.TTL,
				Provider: e.Provider,
			}
			if e.SRV != nil {
				h.RecordHints.SRV = &source.SRVHints{
					Port:     e.SRV.Port,
					Priority: e.SRV.Priority,
					Weight:   e.SRV.Weight,
				}
			}
		}

		hostnames = append(hostnames, h)
	}

	if len(hostnames) > 0 {
		c.logger.Debug("extracted hostnames from container labels",
			slog.Int("count", len(hostnames)),
		)
	}

	return hostnames, nil
}

// Discover is not supported for container labels.
// Labels only come from running containers, not static files.
func (c *Container) Discover(ctx context.Context) ([]source.Hostname, error) {
	return nil, nil
}

// SupportsDiscovery returns false since container labels don't support file discovery.
func (c *Container) SupportsDiscovery() bool {
	return false
}

// Ensure Container implements source.Source
var _ source.Source = (*Container)(nil)
