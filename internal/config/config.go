package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lydakis/ubridge/internal/paths"
)

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the config file, applies environment overrides, and returns the
// parsed Config. If the config file does not exist, it returns a default
// Config (no error).
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadFrom reads and parses a config file at the given path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	expandConfigEnvVars(cfg)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.Discovery.PortStart == 0 {
		cfg.Discovery.PortStart = DefaultPortStart
	}
	if cfg.Discovery.PortEnd == 0 {
		cfg.Discovery.PortEnd = DefaultPortEnd
	}
	if cfg.Discovery.IndexDir == "" {
		cfg.Discovery.IndexDir = paths.InstanceIndexDir()
	}
	if cfg.Dispatch.Attempts == 0 {
		cfg.Dispatch.Attempts = DefaultAttempts
	}
}

// applyEnvOverrides lets deployment environments set the core knobs without
// a config file: transport selection, auth token, allowed-IP list.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("UBRIDGE_TRANSPORT"); v != "" {
		cfg.Transport = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("UBRIDGE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("UBRIDGE_AUTH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("UBRIDGE_AUTH_TOKEN"); ok {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("UBRIDGE_ALLOWED_IPS"); v != "" {
		var ips []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ips = append(ips, part)
			}
		}
		cfg.Auth.AllowedIPs = ips
	}
	if v := os.Getenv("UBRIDGE_INDEX_DIR"); v != "" {
		cfg.Discovery.IndexDir = v
	}
	if v := os.Getenv("UBRIDGE_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Discovery.PortStart = n
		}
	}
	if v := os.Getenv("UBRIDGE_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Discovery.PortEnd = n
		}
	}
}

func expandConfigEnvVars(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Transport = expandEnvVars(cfg.Transport)
	cfg.HTTP.Addr = expandEnvVars(cfg.HTTP.Addr)
	cfg.Auth.Token = expandEnvVars(cfg.Auth.Token)
	for i := range cfg.Auth.AllowedIPs {
		cfg.Auth.AllowedIPs[i] = expandEnvVars(cfg.Auth.AllowedIPs[i])
	}
	cfg.Discovery.IndexDir = expandEnvVars(cfg.Discovery.IndexDir)
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment variable.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // leave unresolved vars as-is
	})
}
