package bigcache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{LifeWindow: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	b, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(b, []byte("v")) {
		t.Fatalf("Get = (%q, %v, %v)", b, ok, err)
	}

	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("deleted key still present: ok=%v err=%v", ok, err)
	}
}

func TestMissIsNotError(t *testing.T) {
	s := newTestStore(t)
	b, ok, err := s.Get(context.Background(), "never-set")
	if err != nil || ok || b != nil {
		t.Fatalf("miss = (%v, %v, %v)", b, ok, err)
	}
}

func TestDelAbsentKey(t *testing.T) {
	s := newTestStore(t)
	if err := s.Del(context.Background(), "absent"); err != nil {
		t.Fatalf("Del absent: %v", err)
	}
}
