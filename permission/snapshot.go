package permission

import "time"

// Origin records how a snapshot was populated.
type Origin string

const (
	// OriginServer marks a snapshot returned by the firm permissions endpoint.
	OriginServer Origin = "server-fetched"
	// OriginSolo marks a snapshot synthesized from a solo operator's login payload.
	OriginSolo Origin = "solo-derived"
)

// Role is the coarse-grained firm role carried by a snapshot.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleMember   Role = "member"
	RoleDeparted Role = "departed"
)

// Payload is the wire shape of a permission grant set, shared by the firm
// permissions endpoint and the permissions block of a login response.
type Payload struct {
	Modules    map[string]string `json:"modules,omitempty"`
	Special    map[string]bool   `json:"special,omitempty"`
	Role       string            `json:"role,omitempty"`
	IsDeparted bool              `json:"isDeparted,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	out := &Payload{
		Role:       p.Role,
		IsDeparted: p.IsDeparted,
	}
	if p.Modules != nil {
		out.Modules = make(map[string]string, len(p.Modules))
		for k, v := range p.Modules {
			out.Modules[k] = v
		}
	}
	if p.Special != nil {
		out.Special = make(map[string]bool, len(p.Special))
		for k, v := range p.Special {
			out.Special[k] = v
		}
	}
	return out
}

// Snapshot is an immutable view of the authenticated user's grants.
//
// Snapshots are shared by pointer between the cache and its readers; callers
// must treat every field as read-only.
type Snapshot struct {
	Modules    map[string]Level
	Special    map[string]bool
	Role       Role
	IsDeparted bool
	FetchedAt  time.Time
	Origin     Origin
}

// NewSnapshot builds a snapshot from a wire payload. A nil payload yields an
// empty snapshot that grants nothing.
func NewSnapshot(p *Payload, origin Origin, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		Modules:   make(map[string]Level),
		Special:   make(map[string]bool),
		FetchedAt: fetchedAt,
		Origin:    origin,
	}
	if p == nil {
		return s
	}
	for module, raw := range p.Modules {
		s.Modules[module] = ParseLevel(raw)
	}
	for key, granted := range p.Special {
		s.Special[key] = granted
	}
	s.Role = Role(p.Role)
	s.IsDeparted = p.IsDeparted || s.Role == RoleDeparted
	return s
}

// Payload converts s back to its wire shape.
func (s *Snapshot) Payload() *Payload {
	if s == nil {
		return nil
	}
	p := &Payload{
		Modules:    make(map[string]string, len(s.Modules)),
		Special:    make(map[string]bool, len(s.Special)),
		Role:       string(s.Role),
		IsDeparted: s.IsDeparted,
	}
	for module, level := range s.Modules {
		p.Modules[module] = level.String()
	}
	for key, granted := range s.Special {
		p.Special[key] = granted
	}
	return p
}

// Level returns the grant for module, or [LevelNone] when s is nil or the
// module is absent.
func (s *Snapshot) Level(module string) Level {
	if s == nil {
		return LevelNone
	}
	return s.Modules[module]
}

// Fresh reports whether s was fetched less than ttl before now.
func (s *Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.FetchedAt) < ttl
}
