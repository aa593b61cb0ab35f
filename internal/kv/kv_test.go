package kv

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/zulandar/testyard/internal/config"
)

func openTestStore(t *testing.T) *Badger {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadger_SetGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "1" {
		t.Errorf("Get = %q, want 1", got)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestBadger_TTLExpires(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "short", []byte("x"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(2100 * time.Millisecond)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after TTL = %v, want ErrNotFound", err)
	}
}

func TestBadger_ExpireExtends(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Expire(ctx, "k", time.Hour); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	time.Sleep(2100 * time.Millisecond)
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after refresh: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want v", got)
	}
}

func TestBadger_ExpireMissing(t *testing.T) {
	s := openTestStore(t)
	if err := s.Expire(context.Background(), "ghost", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expire(ghost) = %v, want ErrNotFound", err)
	}
}

func TestBadger_Keys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"session/alice", "session/bob", "proj:1.0:1:x:result"} {
		if err := s.Set(ctx, k, []byte("{}"), time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	keys, err := s.Keys(ctx, "session/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "session/alice" || keys[1] != "session/bob" {
		t.Errorf("Keys(session/) = %v", keys)
	}
}

func TestBadger_GCInMemory(t *testing.T) {
	s := openTestStore(t)
	if err := s.GC(); err != nil {
		t.Errorf("GC on in-memory store = %v, want nil", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(config.KVConfig{Backend: "memcached"}, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
