// Package dnsmasq implements the DNSReconcile provider interface for dnsmasq DNS server.
package dnsmasq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maxfield-allison/dnsreconcile/pkg/provider"
	"github.com/maxfield-allison/dnsreconcile/pkg/sshutil"
)

// Provider implements provider.Provider for dnsmasq DNS server.
type Provider struct {
	name          string
	zone          string
	ttl           int
	reloadOnWrite bool
	client        *Client
	logger        *slog.Logger

	// SSH-backed remote management. Both are nil when the instance manages
	// a local config file; set together when SSH_HOST is configured.
	sshClient    *sshutil.Client
	sshFS        *sshutil.SFTPFileSystem
	reloadRunner CommandRunner
	sshConnectMu sync.Mutex
	sshConnected bool
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithReloadOnWrite enables automatic dnsmasq reload after writes.
// Default is true.
func WithReloadOnWrite(reload bool) ProviderOption {
	return func(p *Provider) {
		p.reloadOnWrite = reload
	}
}

// WithClient sets a custom client (for testing).
func WithClient(client *Client) ProviderOption {
	return func(p *Provider) {
		p.client = client
	}
}

// New creates a new dnsmasq provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:          name,
		zone:          config.Zone,
		ttl:           config.TTL,
		reloadOnWrite: true, // Default: reload after writes
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []ClientOption{WithLogger(p.logger)}

	// SSH-backed remote management: dnsmasq most commonly runs on a router
	// or a Pi-hole box rather than the reconciler's own host, so the config
	// file and reload command are driven over SFTP/exec instead of the
	// local filesystem. The connection itself is established lazily in
	// Ping so a not-yet-reachable remote host is retried by provider.Manager
	// instead of failing construction.
	if config.IsSSHEnabled() {
		sshCfg := &sshutil.Config{
			Host:            config.SSHHost,
			Port:            config.SSHPort,
			User:            config.SSHUser,
			KeyFile:         config.SSHKeyFile,
			Password:        config.SSHPassword,
			HostKeyCallback: "ignore",
		}
		sshClient, err := sshutil.NewClient(sshCfg, sshutil.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("configuring SSH client: %w", err)
		}
		p.sshClient = sshClient
		p.sshFS = sshutil.NewSFTPFileSystem(sshClient, sshutil.WithSFTPLogger(p.logger))
		p.reloadRunner = sshutil.NewSSHCommandRunner(sshClient, sshutil.WithCommandLogger(p.logger))
		clientOpts = append(clientOpts, WithFileSystem(p.sshFS))
	}

	// Create client if not provided via options (testing)
	if p.client == nil {
		p.client = NewClient(
			config.ConfigDir,
			config.ConfigFile,
			config.ReloadCommand,
			config.Zone,
			clientOpts...,
		)
	}

	return p, nil
}

// NewFromEnv creates a new dnsmasq provider from environment variables.
// This is a convenience function for use with the provider registry.
func NewFromEnv(instanceName string, opts ...ProviderOption) (*Provider, error) {
	config, err := LoadConfig(instanceName)
	if err != nil {
		return nil, err
	}

	return New(instanceName, config, opts...)
}

// NewFromMap creates a new dnsmasq provider from a configuration map.
// This is used by the provider registry Factory pattern.
func NewFromMap(name string, config map[string]string) (*Provider, error) {
	cfg, err := LoadConfigFromMap(name, config)
	if err != nil {
		return nil, err
	}

	return New(name, cfg)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "dnsmasq".
func (p *Provider) Type() string {
	return "dnsmasq"
}

// Zone returns the configured DNS zone.
func (p *Provider) Zone() string {
	return p.zone
}

// Capabilities describes what dnsmasq's hosts-file-style config can represent:
// address=/host/ip and cname=alias,target directives only, no TXT/SRV/MX/CAA/NS,
// no native update (Create/Delete are a full line rewrite), no TTL enforcement.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: false,
		SupportsNativeUpdate: false,
		SupportedRecordTypes: []provider.RecordType{
			provider.RecordTypeA,
			provider.RecordTypeAAAA,
			provider.RecordTypeCNAME,
		},
	}
}

// Validate rejects record types dnsmasq's config format cannot represent.
func (p *Provider) Validate(record provider.Record) error {
	if err := provider.ValidateRecord(record); err != nil {
		return err
	}
	if !p.Capabilities().SupportsRecordType(record.Type) {
		return fmt.Errorf("dnsmasq provider does not support record type %s", record.Type)
	}
	return nil
}

// Ping checks connectivity to the dnsmasq configuration. For SSH-backed
// instances this also establishes the SSH/SFTP connection on first call
// (or after a previous connection was lost), so provider.Manager's retry
// loop is what actually waits out a remote host that isn't up yet.
func (p *Provider) Ping(ctx context.Context) error {
	if p.sshClient != nil {
		if err := p.ensureSSHConnected(ctx); err != nil {
			return fmt.Errorf("connecting to dnsmasq host over SSH: %w", err)
		}
	}
	return p.client.Ping(ctx)
}

// ensureSSHConnected connects the SSH client and SFTP filesystem if not
// already connected, reconnecting if a previous connection was dropped.
func (p *Provider) ensureSSHConnected(ctx context.Context) error {
	p.sshConnectMu.Lock()
	defer p.sshConnectMu.Unlock()

	if p.sshConnected && p.sshClient.IsConnected() {
		return nil
	}

	var err error
	if p.sshClient.IsConnected() {
		err = p.sshClient.Reconnect(ctx)
	} else {
		err = p.sshClient.Connect(ctx)
	}
	if err != nil {
		p.sshConnected = false
		return err
	}

	if err := p.sshFS.Connect(ctx); err != nil {
		p.sshConnected = false
		return err
	}

	p.sshConnected = true
	return nil
}

// List returns all managed records from the dnsmasq config file.
func (p *Provider) List(ctx context.Context) ([]provider.Record, error) {
	dnsmasqRecords, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var records []provider.Record
	for _, r := range dnsmasqRecords {
		records = append(records, provider.Record{
			Hostname:   r.Hostname,
			Type:       r.Type,
			Target:     r.Target,
			TTL:        p.ttl, // dnsmasq doesn't use TTL, but we track it for consistency
			ProviderID: fmt.Sprintf("%s:%s:%s", r.Hostname, r.Type, r.Target),
		})
	}

	p.logger.Debug("listed records",
		slog.String("provider", p.name),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// Create adds a new DNS record to the dnsmasq config.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	// Validate record type
	switch record.Type {
	case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeCNAME:
		// Supported
	case provider.RecordTypeTXT:
		// dnsmasq supports txt-record= directive, but it's rarely needed
		// For now, skip TXT records (ownership tracking uses different mechanism)
		p.logger.Debug("skipping TXT record (not supported by dnsmasq provider)",
			slog.String("hostname", record.Hostname))
		return nil
	case provider.RecordTypeSRV:
		// dnsmasq supports srv-host= directive
		// TODO: implement SRV support in a future version
		return fmt.Errorf("SRV records not yet supported by dnsmasq provider")
	default:
		return fmt.Errorf("unsupported record type: %s", record.Type)
	}

	dnsmasqRecord := dnsmasqRecord{
		Hostname: record.Hostname,
		Type:     record.Type,
		Target:   record.Target,
	}

	if err := p.client.Create(ctx, dnsmasqRecord); err != nil {
		return fmt.Errorf("creating %s record: %w", record.Type, err)
	}

	// Reload dnsmasq if configured
	if p.reloadOnWrite {
		if err := p.reload(ctx); err != nil {
			p.logger.Warn("failed to reload dnsmasq",
				slog.String("error", err.Error()))
			// Don't fail the create, just warn
		}
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
	)

	return nil
}

// Delete removes a DNS record from the dnsmasq config.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	// Skip TXT records (not supported)
	if record.Type == provider.RecordTypeTXT {
		p.logger.Debug("skipping TXT record deletion (not supported by dnsmasq provider)",
			slog.String("hostname", record.Hostname))
		return nil
	}

	dnsmasqRecord := dnsmasqRecord{
		Hostname: record.Hostname,
		Type:     record.Type,
		Target:   record.Target,
	}

	if err := p.client.Delete(ctx, dnsmasqRecord); err != nil {
		return fmt.Errorf("deleting %s record: %w", record.Type, err)
	}

	// Reload dnsmasq if configured
	if p.reloadOnWrite {
		if err := p.reload(ctx); err != nil {
			p.logger.Warn("failed to reload dnsmasq",
				slog.String("error", err.Error()))
			// Don't fail the delete, just warn
		}
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
	)

	return nil
}

// reload signals dnsmasq to reload its configuration, using the SSH command
// runner for remote instances or a local shell exec otherwise.
func (p *Provider) reload(ctx context.Context) error {
	if p.reloadRunner != nil {
		return p.client.ReloadWithRunner(ctx, p.reloadRunner)
	}
	return p.client.Reload(ctx)
}

// Factory returns a provider.Factory function for use with the provider registry.
func Factory() provider.Factory {
	return func(name string, config map[string]string) (provider.Provider, error) {
		return NewFromMap(name, config)
	}
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)
