package session

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/permission"
)

// Store persists named projections as versioned envelopes in a [Backend].
type Store struct {
	backend Backend
	prefix  string
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a Store. prefix namespaces every key; ttl bounds the
// lifetime of written keys and zero keeps them until deleted.
func NewStore(backend Backend, prefix string, ttl time.Duration) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{
		backend: backend,
		prefix:  prefix,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key returns the backend key of a projection name.
func (s *Store) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + ":" + name
}

// Save encodes v and writes it under name.
func (s *Store) Save(ctx context.Context, name string, v any) error {
	blob, err := Encode(v, s.now())
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, s.Key(name), blob, s.ttl)
}

// Load decodes the projection stored under name into v. It returns
// [ErrNotFound] when nothing was saved.
func (s *Store) Load(ctx context.Context, name string, v any) (time.Time, error) {
	blob, err := s.backend.Get(ctx, s.Key(name))
	if err != nil {
		return time.Time{}, err
	}
	return Decode(blob, v)
}

// Delete removes the named projections. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, names ...string) error {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, s.Key(n))
	}
	return s.backend.Del(ctx, keys...)
}

// SavePermissions writes the permission projection of snap. A nil snapshot
// deletes the projection.
func (s *Store) SavePermissions(ctx context.Context, snap *permission.Snapshot) error {
	if snap == nil {
		return s.Delete(ctx, PermissionsKey)
	}
	return s.Save(ctx, PermissionsKey, PermissionsRecord{
		Permissions: snap.Payload(),
		FetchedAt:   snap.FetchedAt.UnixMilli(),
		Origin:      snap.Origin,
	})
}

// LoadPermissions restores the permission projection as a snapshot.
// A record without an origin is treated as server-fetched.
func (s *Store) LoadPermissions(ctx context.Context) (*permission.Snapshot, error) {
	var rec PermissionsRecord
	if _, err := s.Load(ctx, PermissionsKey, &rec); err != nil {
		return nil, err
	}
	origin := rec.Origin
	if origin == "" {
		origin = permission.OriginServer
	}
	return permission.NewSnapshot(rec.Permissions, origin, time.UnixMilli(rec.FetchedAt)), nil
}
