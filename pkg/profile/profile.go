// Package profile stores per-user account records alongside voiceprints.
//
// A profile carries the identity metadata (full name, email, enrollment
// flag) that the verification pipeline itself does not need but the CLI
// surfaces. Records are keyed by lowercase username in the keyvox key
// space ("profile:{username}") and msgpack-encoded over pkg/kv.
//
// Older deployments kept these records in a users.json file whose shape
// drifted across versions. [ImportLegacyJSON] normalizes all known
// shapes into typed records in one pass; after import the JSON file is
// no longer consulted.
package profile

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/keyvox/keyvox/pkg/kv"
	"github.com/keyvox/keyvox/pkg/voiceprint"
)

// ErrNotFound is returned when no profile exists for a username.
var ErrNotFound = errors.New("profile: not found")

// Record is one user's account metadata.
//
// FullName and Email are optional: legacy records frequently lack one
// or both, and an empty string means "not set" rather than a distinct
// null state.
type Record struct {
	Username string `msgpack:"username"`
	FullName string `msgpack:"full_name,omitempty"`
	Email    string `msgpack:"email,omitempty"`

	// VoiceEnrolled is true once a voiceprint exists for this user.
	// It mirrors the voiceprint store and is advisory only; the
	// voiceprint store is authoritative during verification.
	VoiceEnrolled bool `msgpack:"voice_enrolled"`

	// CreatedAt is the record creation time in Unix nanoseconds.
	// Zero for records imported from legacy files, which did not
	// track it.
	CreatedAt int64 `msgpack:"created_at"`
}

// Store is the profile persistence interface.
type Store interface {
	// Get returns the profile for a username. Returns ErrNotFound if
	// the user has no profile.
	Get(ctx context.Context, username string) (Record, error)

	// Put stores (or replaces) a profile. The username is lowercased
	// before use as the key.
	Put(ctx context.Context, rec Record) error

	// Delete removes a profile. No error if absent.
	Delete(ctx context.Context, username string) error

	// All iterates over every stored profile in key order.
	All(ctx context.Context) iter.Seq2[Record, error]
}

// KV is a Store over a kv.Store.
type KV struct {
	store kv.Store
}

// NewKV creates a profile store over the given kv backend.
func NewKV(store kv.Store) *KV {
	return &KV{store: store}
}

func key(username string) kv.Key {
	return kv.Key{"profile", voiceprint.CanonicalUsername(username)}
}

func (s *KV) Get(ctx context.Context, username string) (Record, error) {
	data, err := s.store.Get(ctx, key(username))
	if errors.Is(err, kv.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *KV) Put(ctx context.Context, rec Record) error {
	rec.Username = voiceprint.CanonicalUsername(rec.Username)
	if rec.Username == "" {
		return errors.New("profile: empty username")
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixNano()
	}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key(rec.Username), data)
}

func (s *KV) Delete(ctx context.Context, username string) error {
	return s.store.Delete(ctx, key(username))
}

func (s *KV) All(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for entry, err := range s.store.List(ctx, kv.Key{"profile"}) {
			if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			var rec Record
			if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// SetVoiceEnrolled flips the enrollment flag on an existing profile, or
// creates a minimal profile if none exists yet. Enrollment through the
// CLI works on users who never had a profile record.
func SetVoiceEnrolled(ctx context.Context, s Store, username string, enrolled bool) error {
	rec, err := s.Get(ctx, username)
	if errors.Is(err, ErrNotFound) {
		rec = Record{Username: username}
	} else if err != nil {
		return err
	}
	rec.VoiceEnrolled = enrolled
	return s.Put(ctx, rec)
}
