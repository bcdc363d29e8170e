package config

import (
	"fmt"

	"relaycast/internal/relayerr"
)

// Validate checks that all configuration values are within acceptable
// ranges, returning the first failure found wrapped as a
// relayerr.KindConfig error so callers can distinguish it from other
// startup failures.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return relayerr.Wrap(relayerr.KindConfig, "server config", err)
	}

	seen := make(map[string]bool)
	for i, m := range c.Mounts {
		if err := m.Validate(); err != nil {
			return relayerr.Wrap(relayerr.KindConfig, fmt.Sprintf("mounts[%d]", i), err)
		}
		if seen[m.Path] {
			return relayerr.New(relayerr.KindConfig, fmt.Sprintf("duplicate mount path %q", m.Path))
		}
		seen[m.Path] = true
	}

	for i, a := range c.Auth {
		if a.Handler == "" {
			return relayerr.New(relayerr.KindConfig, fmt.Sprintf("auth[%d]: handler name is required", i))
		}
	}
	for path, s := range c.Status {
		if s.Handler == "" {
			return relayerr.New(relayerr.KindConfig, fmt.Sprintf("status[%q]: handler name is required", path))
		}
	}
	for i, s := range c.Statistics {
		if s.Handler == "" {
			return relayerr.New(relayerr.KindConfig, fmt.Sprintf("statistics[%d]: handler name is required", i))
		}
	}

	return nil
}

// Validate checks server configuration values.
func (s *ServerConfig) Validate() error {
	if s.HealthPort <= 0 || s.HealthPort > 65535 {
		return fmt.Errorf("health_port must be between 1 and 65535, got %d", s.HealthPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", s.HTTPPort)
	}
	if s.HealthPort == s.HTTPPort {
		return fmt.Errorf("health_port and http_port must be different, both are %d", s.HealthPort)
	}
	return nil
}

// Validate checks a single mount's configuration.
func (m *MountConfig) Validate() error {
	if m.Path == "" {
		return fmt.Errorf("path is required")
	}
	if m.Path[0] != '/' {
		return fmt.Errorf("path %q must start with '/'", m.Path)
	}
	if !m.OnDemandEffectiveZero() && len(m.SourceURLs) == 0 {
		return fmt.Errorf("mount %q: source_urls is required unless on_demand and push-publish only", m.Path)
	}
	return nil
}

// OnDemandEffectiveZero reports whether the mount declares no
// source_urls and relies entirely on push-publish ingress -- a mount
// with on_demand set but no source_urls is valid only when it expects
// a SOURCE/PUT publisher rather than a relay.
func (m *MountConfig) OnDemandEffectiveZero() bool {
	return m.OnDemand != nil && *m.OnDemand && len(m.SourceURLs) == 0
}
