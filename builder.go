package goSession

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSession/events"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles a [Manager]. A Builder is single use.
type Builder struct {
	config Config

	api         AuthAPI
	source      permission.Source
	backend     session.Backend
	redis       redis.UniversalClient
	bridge      *events.Bridge
	diagnostics Diagnostics
	auditSink   AuditSink
	logger      *zerolog.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAuthAPI sets the backend client. Required.
func (b *Builder) WithAuthAPI(api AuthAPI) *Builder {
	b.api = api
	return b
}

// WithPermissionSource sets the firm permissions endpoint. When unset and the
// AuthAPI also implements [permission.Source], the AuthAPI is used.
func (b *Builder) WithPermissionSource(src permission.Source) *Builder {
	b.source = src
	return b
}

// WithRedis persists session projections in Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithBackend persists session projections in backend. It takes precedence
// over WithRedis.
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithEventBridge subscribes the Manager to an existing bridge. Without one
// Build creates a private bridge, reachable through Manager.Events.
func (b *Builder) WithEventBridge(bridge *events.Bridge) *Builder {
	b.bridge = bridge
	return b
}

func (b *Builder) WithDiagnostics(d Diagnostics) *Builder {
	b.diagnostics = d
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// withClock overrides time.Now for tests.
func (b *Builder) withClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Manager.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.api == nil {
		return nil, errors.New("auth api required")
	}

	source := b.source
	if source == nil {
		if s, ok := b.api.(permission.Source); ok {
			source = s
		}
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	m := &Manager{
		cfg:         cfg,
		api:         b.api,
		diagnostics: b.diagnostics,
		metrics:     NewMetrics(cfg.Metrics),
		now:         now,
		instanceID:  uuid.NewString(),
		listeners:   make(map[uint64]func(State)),
	}
	m.logger = logger.With().Str("component", "gosession").Str("instance_id", m.instanceID).Logger()

	// -------- PERSISTENCE --------
	if cfg.Persistence.Enabled {
		backend := b.backend
		if backend == nil && b.redis != nil {
			backend = session.NewRedisBackend(b.redis)
		}
		if backend == nil {
			backend = session.NewMemoryBackend()
		}
		m.store = session.NewStore(backend, cfg.Persistence.Prefix, cfg.Persistence.TTL)
	}

	// -------- PERMISSION CACHE --------
	m.perms = permission.NewCache(source, permission.Options{
		TTL:      cfg.Permission.TTL,
		Now:      now,
		OnChange: m.onPermissionsChange,
	})

	// -------- AUDIT --------
	m.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- EVENT BRIDGE --------
	bridge := b.bridge
	if bridge == nil {
		bridge = events.NewBridge()
	}
	bridge.Subscribe(m)
	m.bridge = bridge

	b.built = true

	return m, nil
}
