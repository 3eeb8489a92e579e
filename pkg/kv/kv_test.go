package kv_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/keyvox/keyvox/pkg/kv"
)

// backends lists the store implementations under test. The same conformance
// checks run against the in-memory map and a real badger engine (in-memory
// mode, no disk files).
func backends(t *testing.T) map[string]kv.Store {
	t.Helper()
	mem := kv.NewMemory(nil)
	t.Cleanup(func() { mem.Close() })

	bdg, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { bdg.Close() })

	return map[string]kv.Store{"memory": mem, "badger": bdg}
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := kv.Key{"voiceprint", "alice"}
			val := []byte("hello")

			// Get non-existent key.
			_, err := s.Get(ctx, key)
			if !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			// Set and Get.
			if err := s.Set(ctx, key, val); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != string(val) {
				t.Fatalf("Get = %q, want %q", got, val)
			}

			// Overwrite.
			val2 := []byte("world")
			if err := s.Set(ctx, key, val2); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err = s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get after overwrite: %v", err)
			}
			if string(got) != string(val2) {
				t.Fatalf("Get = %q, want %q", got, val2)
			}

			// Delete.
			if err := s.Delete(ctx, key); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			_, err = s.Get(ctx, key)
			if !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}

			// Delete non-existent key should not error.
			if err := s.Delete(ctx, kv.Key{"no", "such", "key"}); err != nil {
				t.Fatalf("Delete non-existent: %v", err)
			}
		})
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			entries := []kv.Entry{
				{Key: kv.Key{"voiceprint", "alice"}, Value: []byte("a")},
				{Key: kv.Key{"voiceprint", "bob"}, Value: []byte("b")},
				{Key: kv.Key{"profile", "alice"}, Value: []byte("p1")},
				{Key: kv.Key{"profile", "charlie"}, Value: []byte("p2")},
			}
			for _, e := range entries {
				if err := s.Set(ctx, e.Key, e.Value); err != nil {
					t.Fatalf("Set %v: %v", e.Key, err)
				}
			}

			// List voiceprint: alice and bob only, lexicographic.
			var got []string
			for entry, err := range s.List(ctx, kv.Key{"voiceprint"}) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				got = append(got, entry.Key.String()+"="+string(entry.Value))
			}
			want := []string{
				"voiceprint:alice=a",
				"voiceprint:bob=b",
			}
			if !slices.Equal(got, want) {
				t.Fatalf("List voiceprint = %v, want %v", got, want)
			}

			// A prefix that is a string prefix of another segment must not match:
			// "profile" must not pick up a hypothetical "profiles" namespace.
			if err := s.Set(ctx, kv.Key{"profiles", "x"}, []byte("nope")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got = nil
			for entry, err := range s.List(ctx, kv.Key{"profile"}) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				got = append(got, entry.Key.String())
			}
			want = []string{"profile:alice", "profile:charlie"}
			if !slices.Equal(got, want) {
				t.Fatalf("List profile = %v, want %v", got, want)
			}

			// Early break must stop iteration cleanly.
			n := 0
			for _, err := range s.List(ctx, kv.Key{"voiceprint"}) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				n++
				break
			}
			if n != 1 {
				t.Fatalf("early break: visited %d entries, want 1", n)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	k := kv.Key{"voiceprint", "alice"}
	if k.String() != "voiceprint:alice" {
		t.Fatalf("Key.String() = %q", k.String())
	}
}
