package config

import "time"

// Transport names accepted in [transport].
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the top-level ubridge configuration.
type Config struct {
	Transport string          `toml:"transport"`
	HTTP      HTTPConfig      `toml:"http"`
	Auth      AuthConfig      `toml:"auth"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Dispatch  DispatchConfig  `toml:"dispatch"`
}

// HTTPConfig describes the network-exposed transport.
type HTTPConfig struct {
	Addr string `toml:"addr"`

	// TrustForwardedFor makes the auth gate read the caller address from
	// X-Forwarded-For instead of the peer address. Only safe behind a
	// reverse proxy that strips the header from outside traffic.
	TrustForwardedFor bool `toml:"trust_forwarded_for"`
}

// AuthConfig guards the network-exposed transport. The stdio transport is
// same-machine, same-user and never consults it.
type AuthConfig struct {
	Enabled    bool     `toml:"enabled"`
	Token      string   `toml:"token"`
	AllowedIPs []string `toml:"allowed_ips"`
}

// DiscoveryConfig controls how editor instances are found.
type DiscoveryConfig struct {
	PortStart    int    `toml:"port_start"`
	PortEnd      int    `toml:"port_end"`
	IndexDir     string `toml:"index_dir"`
	ProbeTimeout string `toml:"probe_timeout"`
	CacheTTL     string `toml:"cache_ttl"`
}

// DispatchConfig controls command send retry behaviour.
type DispatchConfig struct {
	Attempts       int    `toml:"attempts"`
	AttemptTimeout string `toml:"attempt_timeout"`
	BackoffInitial string `toml:"backoff_initial"`
	BackoffMax     string `toml:"backoff_max"`
}

// Defaults applied by Load when a field is unset.
const (
	DefaultHTTPAddr       = "127.0.0.1:8090"
	DefaultPortStart      = 6400
	DefaultPortEnd        = 6409
	DefaultProbeTimeout   = time.Second
	DefaultCacheTTL       = 10 * time.Second
	DefaultAttempts       = 3
	DefaultAttemptTimeout = 30 * time.Second
	DefaultBackoffInitial = 250 * time.Millisecond
	DefaultBackoffMax     = 2 * time.Second
)

// ProbeTimeoutDuration parses the probe timeout, falling back to the default.
func (d DiscoveryConfig) ProbeTimeoutDuration() time.Duration {
	return parseDurationOr(d.ProbeTimeout, DefaultProbeTimeout)
}

// CacheTTLDuration parses the registry cache TTL, falling back to the default.
func (d DiscoveryConfig) CacheTTLDuration() time.Duration {
	return parseDurationOr(d.CacheTTL, DefaultCacheTTL)
}

// AttemptTimeoutDuration parses the per-attempt timeout, falling back to the default.
func (d DispatchConfig) AttemptTimeoutDuration() time.Duration {
	return parseDurationOr(d.AttemptTimeout, DefaultAttemptTimeout)
}

// BackoffInitialDuration parses the initial backoff, falling back to the default.
func (d DispatchConfig) BackoffInitialDuration() time.Duration {
	return parseDurationOr(d.BackoffInitial, DefaultBackoffInitial)
}

// BackoffMaxDuration parses the backoff ceiling, falling back to the default.
func (d DispatchConfig) BackoffMaxDuration() time.Duration {
	return parseDurationOr(d.BackoffMax, DefaultBackoffMax)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsHTTP returns true if the network-exposed transport is selected.
func (c *Config) IsHTTP() bool {
	return c.Transport == TransportHTTP
}
