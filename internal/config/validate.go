package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error

	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("transport: unknown transport %q (want %q or %q)",
			cfg.Transport, TransportStdio, TransportHTTP))
	}

	if cfg.IsHTTP() {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			errs = append(errs, fmt.Errorf("http.addr: invalid listen address %q: %w", cfg.HTTP.Addr, err))
		}
	}

	for _, entry := range cfg.Auth.AllowedIPs {
		if err := validateAllowedIP(entry); err != nil {
			errs = append(errs, fmt.Errorf("auth.allowed_ips: %w", err))
		}
	}

	if cfg.Discovery.PortStart < 1 || cfg.Discovery.PortStart > 65535 {
		errs = append(errs, fmt.Errorf("discovery.port_start: port %d out of range", cfg.Discovery.PortStart))
	}
	if cfg.Discovery.PortEnd < cfg.Discovery.PortStart {
		errs = append(errs, fmt.Errorf("discovery.port_end: %d is below port_start %d",
			cfg.Discovery.PortEnd, cfg.Discovery.PortStart))
	}

	errs = append(errs, validateDuration("discovery.probe_timeout", cfg.Discovery.ProbeTimeout))
	errs = append(errs, validateDuration("discovery.cache_ttl", cfg.Discovery.CacheTTL))
	errs = append(errs, validateDuration("dispatch.attempt_timeout", cfg.Dispatch.AttemptTimeout))
	errs = append(errs, validateDuration("dispatch.backoff_initial", cfg.Dispatch.BackoffInitial))
	errs = append(errs, validateDuration("dispatch.backoff_max", cfg.Dispatch.BackoffMax))

	if cfg.Dispatch.Attempts < 1 {
		errs = append(errs, fmt.Errorf("dispatch.attempts: must be at least 1, got %d", cfg.Dispatch.Attempts))
	}

	return errors.Join(errs...)
}

func validateAllowedIP(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "*" {
		return nil
	}
	if strings.Contains(entry, "/") {
		if _, err := netip.ParsePrefix(entry); err != nil {
			return fmt.Errorf("invalid CIDR %q: %w", entry, err)
		}
		return nil
	}
	if _, err := netip.ParseAddr(entry); err != nil {
		return fmt.Errorf("invalid address %q: %w", entry, err)
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: duration must be positive, got %q", field, value)
	}
	return nil
}
