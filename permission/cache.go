package permission

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNoFirm is returned by a Source when the user has no firm affiliation.
	// The cache treats it as a terminal state, not a failure.
	ErrNoFirm = errors.New("permission: no firm associated")
	// ErrNoSource is recorded when Fetch misses and no Source is configured.
	ErrNoSource = errors.New("permission: source not configured")
)

// DefaultTTL is the freshness window of a server-fetched snapshot.
const DefaultTTL = 5 * time.Minute

// DefaultModules lists the modules granted in full to a solo operator whose
// login payload carries no explicit permissions.
var DefaultModules = []string{
	"clients", "cases", "leads", "invoices", "payments", "expenses", "documents",
	"tasks", "events", "timeTracking", "reports", "settings", "team", "hr",
}

// DefaultSoloSpecial lists the special permissions of a solo operator whose
// login payload carries no explicit permissions.
var DefaultSoloSpecial = []string{
	"canApproveInvoices", "canManageRetainers", "canExportData", "canDeleteRecords",
	"canViewFinance", "canManageTeam", "canAccessHR", "canCreateFirm", "canJoinFirm",
}

// Source fetches the firm-scoped permission payload of the current user.
type Source interface {
	GetMyPermissions(ctx context.Context) (*Payload, error)
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context) (*Payload, error)

// GetMyPermissions calls f(ctx).
func (f SourceFunc) GetMyPermissions(ctx context.Context) (*Payload, error) {
	return f(ctx)
}

// Options configures a [Cache].
type Options struct {
	// TTL is the freshness window. Zero means [DefaultTTL].
	TTL time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
	// OnChange runs after every snapshot replacement, outside the cache lock.
	// The argument is nil after Clear.
	OnChange func(*Snapshot)
}

// Cache holds the current permission snapshot of the authenticated user.
//
// Queries take the read lock only and never perform I/O. A nil *Cache
// answers every query with the safe default.
type Cache struct {
	source   Source
	ttl      time.Duration
	now      func() time.Time
	onChange func(*Snapshot)

	mu       sync.RWMutex
	snapshot *Snapshot
	err      error
	noFirm   bool
	loading  int
	gen      uint64
}

// NewCache creates an empty cache backed by source. source may be nil, in
// which case Fetch records [ErrNoSource] on a miss.
func NewCache(source Source, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		source:   source,
		ttl:      opts.TTL,
		now:      opts.Now,
		onChange: opts.OnChange,
	}
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Fetch returns the current snapshot, refreshing it from the Source when it
// is absent or stale. Solo-derived snapshots never expire.
//
// Concurrent misses are not collapsed; each reaches the Source. A result that
// arrives after Clear or Set is discarded.
func (c *Cache) Fetch(ctx context.Context) *Snapshot {
	c.mu.Lock()
	if s := c.snapshot; s != nil && (s.Origin == OriginSolo || s.Fresh(c.now(), c.ttl)) {
		c.mu.Unlock()
		return s
	}
	if c.source == nil {
		c.err = ErrNoSource
		s := c.snapshot
		c.mu.Unlock()
		return s
	}
	gen := c.gen
	c.loading++
	c.mu.Unlock()

	payload, err := c.source.GetMyPermissions(ctx)

	c.mu.Lock()
	c.loading--
	if gen != c.gen {
		s := c.snapshot
		c.mu.Unlock()
		return s
	}
	switch {
	case errors.Is(err, ErrNoFirm):
		c.noFirm = true
		c.err = nil
		s := c.snapshot
		c.mu.Unlock()
		return s
	case err != nil:
		c.err = err
		s := c.snapshot
		c.mu.Unlock()
		return s
	}
	s := NewSnapshot(payload, OriginServer, c.now())
	c.snapshot = s
	c.err = nil
	c.noFirm = false
	c.gen++
	c.mu.Unlock()

	c.notify(s)
	return s
}

// DeriveFromLogin builds and stores a snapshot from the permissions block of a
// login response without any I/O.
//
// For a solo operator a nil payload grants every default module in full with
// the owner role. For anyone else the payload is taken as is and the role
// defaults to member.
func (c *Cache) DeriveFromLogin(raw *Payload, isSolo bool) *Snapshot {
	p := raw.Clone()
	if p == nil {
		p = &Payload{}
		if isSolo {
			p.Modules = make(map[string]string, len(DefaultModules))
			for _, m := range DefaultModules {
				p.Modules[m] = LevelFull.String()
			}
			p.Special = make(map[string]bool, len(DefaultSoloSpecial))
			for _, k := range DefaultSoloSpecial {
				p.Special[k] = true
			}
		}
	}
	if p.Role == "" {
		if isSolo {
			p.Role = string(RoleOwner)
		} else {
			p.Role = string(RoleMember)
		}
	}

	origin := OriginServer
	if isSolo {
		origin = OriginSolo
	}
	s := NewSnapshot(p, origin, c.now())

	c.mu.Lock()
	c.snapshot = s
	c.err = nil
	c.noFirm = isSolo
	c.gen++
	c.mu.Unlock()

	c.notify(s)
	return s
}

// Set replaces the snapshot. A nil snapshot is equivalent to Clear.
func (c *Cache) Set(s *Snapshot) {
	c.mu.Lock()
	c.snapshot = s
	c.err = nil
	c.noFirm = false
	c.gen++
	c.mu.Unlock()

	c.notify(s)
}

// Clear drops the snapshot and all fetch bookkeeping.
func (c *Cache) Clear() {
	c.Set(nil)
}

func (c *Cache) notify(s *Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

// Snapshot returns the current snapshot, or nil.
func (c *Cache) Snapshot() *Snapshot {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Error returns the last fetch failure other than [ErrNoFirm].
func (c *Cache) Error() error {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// NoFirmAssociated reports whether the Source answered [ErrNoFirm], or the
// snapshot was derived for a solo operator.
func (c *Cache) NoFirmAssociated() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noFirm
}

// IsLoading reports whether a Source call is in flight.
func (c *Cache) IsLoading() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

/*
====================================================================================
QUERIES
====================================================================================
*/

// Level returns the grant for module, or [LevelNone] without a snapshot.
func (c *Cache) Level(module string) Level {
	return c.Snapshot().Level(module)
}

// HasPermission reports whether the grant for module satisfies required.
// Without a snapshot it reports false for every level, including [LevelNone].
func (c *Cache) HasPermission(module string, required Level) bool {
	s := c.Snapshot()
	if s == nil {
		return false
	}
	return s.Level(module).Satisfies(required)
}

// CanView reports whether module can be read.
func (c *Cache) CanView(module string) bool {
	return c.HasPermission(module, LevelView)
}

// CanEdit reports whether module records can be created or updated.
func (c *Cache) CanEdit(module string) bool {
	return c.HasPermission(module, LevelEdit)
}

// CanDelete reports whether module records can be deleted.
func (c *Cache) CanDelete(module string) bool {
	return c.HasPermission(module, LevelFull)
}

// HasSpecialPermission reports whether the special flag key is granted.
func (c *Cache) HasSpecialPermission(key string) bool {
	s := c.Snapshot()
	if s == nil {
		return false
	}
	return s.Special[key]
}

// IsDeparted reports whether the user has left the firm.
func (c *Cache) IsDeparted() bool {
	s := c.Snapshot()
	if s == nil {
		return false
	}
	return s.IsDeparted
}

// IsAdminOrOwner reports whether the snapshot role is admin or owner.
func (c *Cache) IsAdminOrOwner() bool {
	s := c.Snapshot()
	if s == nil {
		return false
	}
	return s.Role == RoleAdmin || s.Role == RoleOwner
}
