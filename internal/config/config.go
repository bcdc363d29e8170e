// Package config defines the server's YAML configuration schema (spec
// §6) and strict-decode loading, in the teacher's style: explicit
// defaults applied after a KnownFields decode, validation as a
// separate pass.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Root-level defaults inherited by mounts that don't override them.
	BurstSize     *BurstSize  `yaml:"burst_size,omitempty"`
	OnDemand      bool        `yaml:"on_demand,omitempty"`
	Keepalive     interface{} `yaml:"keepalive,omitempty"`
	MaxQueueSize  int64       `yaml:"max_queue_size,omitempty"`
	NetResolveAll bool        `yaml:"net_resolve_all,omitempty"`

	ClientsLimit int `yaml:"clients_limit,omitempty"`

	Mounts     []MountConfig            `yaml:"mounts,omitempty"`
	Auth       []HandlerConfig          `yaml:"auth,omitempty"`
	Status     map[string]HandlerConfig `yaml:"status,omitempty"`
	Statistics []HandlerConfig          `yaml:"statistics,omitempty"`
}

// ServerConfig defines the process's ports. Only HTTPPort is listened
// on; HealthPort is defaulted and validated, but no listener is opened
// on it, and /healthz is served on HTTPPort.
type ServerConfig struct {
	HealthPort int `yaml:"health_port"` // defaulted and validated only
	HTTPPort   int `yaml:"http_port"`   // /healthz, mount GETs, push-publish SOURCE/PUT, status pages
}

// MountConfig describes one relayed/published mount. Pointer fields
// distinguish "not set, inherit the root default" from an explicit
// zero/false value.
type MountConfig struct {
	Path          string      `yaml:"path"`
	SourceURLs    []string    `yaml:"source_urls,omitempty"`
	BurstSize     *BurstSize  `yaml:"burst_size,omitempty"`
	OnDemand      *bool       `yaml:"on_demand,omitempty"`
	Keepalive     interface{} `yaml:"keepalive,omitempty"`
	MaxQueueSize  *int64      `yaml:"max_queue_size,omitempty"`
	NetResolveAll *bool       `yaml:"net_resolve_all,omitempty"`
}

// HandlerConfig names a compile-time-registered handler constructor
// plus its freeform options (spec §9: handler registry redesign
// replaces the source's dynamic "module.Class" loading).
type HandlerConfig struct {
	Handler string                 `yaml:"handler"`
	Options map[string]interface{} `yaml:",inline"`
}

// Load reads and strictly decodes configuration from a YAML file, then
// applies defaults. Unknown fields are a configuration error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from raw YAML bytes. Exposed separately
// from Load so the fsnotify-driven config watcher and tests can decode
// in-memory content without touching the filesystem.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.HealthPort == 0 {
		c.Server.HealthPort = 8080
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8000
	}
}

// EffectiveBurstSize resolves a mount's burst budget, falling back to
// the root default, then to 0 if neither is set.
func (c *Config) EffectiveBurstSize(m *MountConfig) int64 {
	if m.BurstSize != nil {
		return m.BurstSize.Bytes
	}
	if c.BurstSize != nil {
		return c.BurstSize.Bytes
	}
	return 0
}

// EffectiveOnDemand resolves a mount's on_demand flag against the root
// default.
func (c *Config) EffectiveOnDemand(m *MountConfig) bool {
	if m.OnDemand != nil {
		return *m.OnDemand
	}
	return c.OnDemand
}

// EffectiveKeepalive resolves a mount's keepalive seconds against the
// root default, using the lenient coercion documented in
// keepalive.go. A non-null mount-level value wins (even if it coerces
// to "no keepalive"); an absent or explicitly null mount-level value
// falls through to the root.
func (c *Config) EffectiveKeepalive(m *MountConfig) (seconds int, has bool) {
	if m.Keepalive != nil {
		return CoerceKeepalive(m.Keepalive)
	}
	return CoerceKeepalive(c.Keepalive)
}

// EffectiveMaxQueueSize resolves a mount's per-subscriber output cap
// against the root default.
func (c *Config) EffectiveMaxQueueSize(m *MountConfig) int64 {
	if m.MaxQueueSize != nil {
		return *m.MaxQueueSize
	}
	return c.MaxQueueSize
}

// EffectiveNetResolveAll resolves a mount's net_resolve_all flag
// against the root default.
func (c *Config) EffectiveNetResolveAll(m *MountConfig) bool {
	if m.NetResolveAll != nil {
		return *m.NetResolveAll
	}
	return c.NetResolveAll
}
