package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(NewRedisBackend(rdb), "gs", time.Hour)
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

type authProjection struct {
	User            map[string]string `json:"user"`
	IsAuthenticated bool              `json:"isAuthenticated"`
}

func TestStoreSaveLoadRedis(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	in := authProjection{User: map[string]string{"id": "u-1"}, IsAuthenticated: true}
	if err := store.Save(ctx, AuthKey, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("gs:auth-storage") {
		t.Fatalf("expected namespaced key in redis, have %v", mr.Keys())
	}
	if ttl := mr.TTL("gs:auth-storage"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	var out authProjection
	savedAt, err := store.Load(ctx, AuthKey, &out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.User["id"] != "u-1" || !out.IsAuthenticated {
		t.Fatalf("unexpected projection %+v", out)
	}
	if savedAt.IsZero() {
		t.Fatalf("expected savedAt")
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()

	var out authProjection
	if _, err := store.Load(context.Background(), AuthKey, &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, AuthKey, authProjection{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Delete(ctx, AuthKey, PermissionsKey); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	if mr.Exists("gs:auth-storage") {
		t.Fatalf("expected key removed")
	}
}

func TestRedisBackendUnavailable(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	mr.Close()

	err := store.Save(context.Background(), AuthKey, authProjection{})
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend, got %v", err)
	}
}

func TestPermissionsRoundTrip(t *testing.T) {
	store := NewStore(NewMemoryBackend(), "", 0)
	ctx := context.Background()
	fetchedAt := time.UnixMilli(1_700_000_000_000)

	snap := permission.NewSnapshot(&permission.Payload{
		Modules: map[string]string{"cases": "edit"},
		Special: map[string]bool{"canExportData": true},
		Role:    "admin",
	}, permission.OriginSolo, fetchedAt)

	if err := store.SavePermissions(ctx, snap); err != nil {
		t.Fatalf("save permissions: %v", err)
	}
	got, err := store.LoadPermissions(ctx)
	if err != nil {
		t.Fatalf("load permissions: %v", err)
	}
	if got.Level("cases") != permission.LevelEdit || !got.Special["canExportData"] {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if got.Origin != permission.OriginSolo || !got.FetchedAt.Equal(fetchedAt) {
		t.Fatalf("unexpected metadata origin=%s fetchedAt=%v", got.Origin, got.FetchedAt)
	}

	if err := store.SavePermissions(ctx, nil); err != nil {
		t.Fatalf("clear permissions: %v", err)
	}
	if _, err := store.LoadPermissions(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	var v map[string]any
	_, err := Decode([]byte(`{"version":99,"savedAt":0,"data":{}}`), &v)
	if !errors.Is(err, ErrUnsupportedSchema) || !strings.Contains(err.Error(), "99") {
		t.Fatalf("expected unsupported schema error, got %v", err)
	}
}

func TestDecodeRejectsCorruptBlob(t *testing.T) {
	var v map[string]any
	for _, blob := range []string{"", "not-json", `{"version":1}`} {
		if _, err := Decode([]byte(blob), &v); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("blob %q: expected ErrCorrupt, got %v", blob, err)
		}
	}
}

func TestMemoryBackendExpiry(t *testing.T) {
	b := NewMemoryBackend()
	now := time.Unix(100, 0)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	if err := b.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := b.Get(ctx, "k"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}
	now = now.Add(time.Second)
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
