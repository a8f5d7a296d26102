package goSession

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/permission"
)

// Config holds every Manager setting. Start from [DefaultConfig] and override
// fields; Builder.Build validates the result.
type Config struct {
	Permission  PermissionConfig
	Persistence PersistenceConfig
	Session     SessionConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig controls the permission cache.
type PermissionConfig struct {
	// TTL is the freshness window of a server-fetched snapshot.
	TTL time.Duration
	// FetchTimeout bounds a background permission fetch.
	FetchTimeout time.Duration
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// PersistenceConfig controls the persisted session projections.
type PersistenceConfig struct {
	Enabled bool
	// Prefix namespaces the persisted keys, e.g. "gs" gives "gs:auth-storage".
	Prefix string
	// TTL bounds persisted keys. Zero keeps them until logout.
	TTL time.Duration
	// Timeout bounds each save issued after a mutation.
	Timeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls background session reconciliation.
type SessionConfig struct {
	// CheckInterval is the Watch tick.
	CheckInterval time.Duration
	// RefreshWindow triggers a check when the access token expires within it.
	RefreshWindow time.Duration
	// CheckTimeout bounds each check issued by Watch.
	CheckTimeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the recommended settings.
func DefaultConfig() Config {
	return Config{
		Permission: PermissionConfig{
			TTL:          permission.DefaultTTL,
			FetchTimeout: 10 * time.Second,
		},
		Persistence: PersistenceConfig{
			Enabled: true,
			Prefix:  "gs",
			TTL:     0,
			Timeout: 2 * time.Second,
		},
		Session: SessionConfig{
			CheckInterval: time.Minute,
			RefreshWindow: 2 * time.Minute,
			CheckTimeout:  10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Persistence.Prefix = strings.Clone(cfg.Persistence.Prefix)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Permission
	if c.Permission.TTL <= 0 {
		return errors.New("Permission TTL must be > 0")
	}
	if c.Permission.FetchTimeout <= 0 {
		return errors.New("Permission FetchTimeout must be > 0")
	}

	// Persistence
	if c.Persistence.Enabled {
		if c.Persistence.TTL < 0 {
			return errors.New("Persistence TTL must be >= 0")
		}
		if c.Persistence.Timeout <= 0 {
			return errors.New("Persistence Timeout must be > 0")
		}
		if strings.ContainsAny(c.Persistence.Prefix, " \t\r\n") {
			return errors.New("Persistence Prefix must not contain whitespace")
		}
	}

	// Session
	if c.Session.CheckInterval <= 0 {
		return errors.New("Session CheckInterval must be > 0")
	}
	if c.Session.RefreshWindow < 0 {
		return errors.New("Session RefreshWindow must be >= 0")
	}
	if c.Session.CheckTimeout <= 0 {
		return errors.New("Session CheckTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
