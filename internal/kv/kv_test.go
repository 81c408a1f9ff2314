package kv

import (
	"bytes"
	"context"
	"testing"
	"time"
)

// stores returns every Store implementation under test. Badger runs in
// memory so the suite needs no disk.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadger(Config{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"badger": b,
	}
}

func TestSetGetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, found, err := s.Get(ctx, "missing"); err != nil || found {
				t.Errorf("Get(missing) = found=%v err=%v", found, err)
			}

			if err := s.Set(ctx, "k", []byte("v1"), 0); err != nil {
				t.Fatal(err)
			}
			got, found, err := s.Get(ctx, "k")
			if err != nil || !found || !bytes.Equal(got, []byte("v1")) {
				t.Errorf("Get(k) = %q found=%v err=%v", got, found, err)
			}

			// Overwrite.
			if err := s.Set(ctx, "k", []byte("v2"), 0); err != nil {
				t.Fatal(err)
			}
			got, _, _ = s.Get(ctx, "k")
			if !bytes.Equal(got, []byte("v2")) {
				t.Errorf("Get after overwrite = %q", got)
			}

			existed, err := s.Delete(ctx, "k")
			if err != nil || !existed {
				t.Errorf("Delete(k) = %v err=%v", existed, err)
			}
			existed, err = s.Delete(ctx, "k")
			if err != nil || existed {
				t.Errorf("second Delete(k) = %v err=%v", existed, err)
			}
		})
	}
}

func TestClear(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Set(ctx, "a", []byte("1"), 0)
			_ = s.Set(ctx, "b", []byte("2"), 0)
			if err := s.Clear(ctx); err != nil {
				t.Fatal(err)
			}
			if _, found, _ := s.Get(ctx, "a"); found {
				t.Error("a survived Clear")
			}
			if _, found, _ := s.Get(ctx, "b"); found {
				t.Error("b survived Clear")
			}
		})
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := m.Get(ctx, "k"); !found {
		t.Fatal("entry missing before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, found, _ := m.Get(ctx, "k"); found {
		t.Error("entry readable after expiry")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry not reaped: len = %d", m.Len())
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := []byte("orig")
	_ = m.Set(ctx, "k", v, 0)
	v[0] = 'X'

	got, _, _ := m.Get(ctx, "k")
	if !bytes.Equal(got, []byte("orig")) {
		t.Errorf("stored value aliased caller's slice: %q", got)
	}
	got[0] = 'Y'
	again, _, _ := m.Get(ctx, "k")
	if !bytes.Equal(again, []byte("orig")) {
		t.Errorf("returned value aliased store: %q", again)
	}
}
