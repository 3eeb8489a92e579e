// Package voiceprint persists one reference embedding per enrolled
// identity.
//
// A voiceprint is created at enrollment (a mean of per-segment unit
// embeddings, re-normalized) and read at verification time. It is never
// mutated in place: re-enrollment replaces the record wholesale.
//
// Records are keyed by lowercase username. The [Store] interface has a
// KV-backed implementation ([NewKV]) that msgpack-encodes records into
// the keyvox key space ("voiceprint:{username}").
package voiceprint

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/keyvox/keyvox/pkg/embedding"
	"github.com/keyvox/keyvox/pkg/kv"
)

// ErrNotFound is returned when no voiceprint exists for a username.
var ErrNotFound = errors.New("voiceprint: not found")

// Record is the stored form of one identity's voiceprint.
type Record struct {
	// Username is the lowercase identity key.
	Username string `msgpack:"username"`

	// Vector is the unit-normalized reference embedding.
	Vector []float64 `msgpack:"vector"`

	// Model records which embedding backend produced the vector, so a
	// backend swap can invalidate stale templates.
	Model string `msgpack:"model,omitempty"`

	// CreatedAt is the enrollment time in Unix nanoseconds.
	CreatedAt int64 `msgpack:"created_at"`
}

// Entry is one cohort member yielded by ListAllExcept.
type Entry struct {
	Username string
	Vector   []float64
}

// Store is the voiceprint persistence interface.
//
// Reads take no locks: each verification attempt loads its own snapshot,
// and a concurrent re-enrollment overwriting a voiceprint mid-attempt is
// an accepted race (callers needing strict consistency serialize above
// this layer).
type Store interface {
	// Load returns the stored embedding for a username.
	// Returns ErrNotFound if the identity has no voiceprint.
	Load(ctx context.Context, username string) ([]float64, error)

	// Save stores (or wholesale replaces) the embedding for a username.
	Save(ctx context.Context, username string, vec []float64) error

	// Delete removes a voiceprint. No error if absent.
	Delete(ctx context.Context, username string) error

	// ListAllExcept iterates over every enrolled voiceprint except the
	// given username's. This is the cohort used for score normalization.
	ListAllExcept(ctx context.Context, username string) iter.Seq2[Entry, error]
}

// CanonicalUsername lowercases a username for use as a store key.
func CanonicalUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// KV is a Store over a kv.Store.
type KV struct {
	store kv.Store

	// model tags saved records with the producing backend's name.
	model string
}

// KVOption configures a KV store.
type KVOption func(*KV)

// WithModelTag sets the backend name recorded on saved voiceprints.
func WithModelTag(model string) KVOption {
	return func(s *KV) { s.model = model }
}

// NewKV creates a voiceprint store over the given kv backend.
func NewKV(store kv.Store, opts ...KVOption) *KV {
	s := &KV{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(username string) kv.Key {
	return kv.Key{"voiceprint", CanonicalUsername(username)}
}

func (s *KV) Load(ctx context.Context, username string) ([]float64, error) {
	data, err := s.store.Get(ctx, key(username))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	// Stored vectors are unit-normalized at save time; normalize again on
	// the way out so records written by older builds stay comparable.
	return embedding.Normalize(rec.Vector), nil
}

func (s *KV) Save(ctx context.Context, username string, vec []float64) error {
	rec := Record{
		Username:  CanonicalUsername(username),
		Vector:    embedding.Normalize(vec),
		Model:     s.model,
		CreatedAt: time.Now().UnixNano(),
	}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key(username), data)
}

func (s *KV) Delete(ctx context.Context, username string) error {
	return s.store.Delete(ctx, key(username))
}

func (s *KV) ListAllExcept(ctx context.Context, username string) iter.Seq2[Entry, error] {
	skip := CanonicalUsername(username)
	return func(yield func(Entry, error) bool) {
		for entry, err := range s.store.List(ctx, kv.Key{"voiceprint"}) {
			if err != nil {
				if !yield(Entry{}, err) {
					return
				}
				continue
			}
			var rec Record
			if err := msgpack.Unmarshal(entry.Value, &rec); err != nil {
				// Skip malformed entries rather than failing the cohort.
				continue
			}
			if rec.Username == skip {
				continue
			}
			e := Entry{
				Username: rec.Username,
				Vector:   embedding.Normalize(rec.Vector),
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}
