// Package embedding wraps the external speaker-embedding model behind a
// narrow interface and normalizes its output into fixed-length unit
// vectors.
//
// # Pipeline position
//
// The verification pipeline hands trimmed audio (full utterances or
// sliding-window segments) to an [Encoder], which resamples to the model's
// rate, runs the black-box [Model], and collapses whatever tensor shape
// the model emits into one L2-normalized vector per input via
// [ToUtteranceVector].
//
// # Output shapes
//
// Speaker models differ in whether they emit one embedding per utterance
// or one per analysis frame. ToUtteranceVector accepts exactly three
// ranks and nothing else:
//
//	[dim]             single utterance vector
//	[frames, dim]     per-frame vectors, collapsed by arithmetic mean
//	[1, frames, dim]  batched per-frame vectors, batch must be 1
//
// Anything else is an error, so shape ambiguity is resolved here once
// rather than re-guessed at each call site.
package embedding

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Epsilon guards divisions by vector norms and score spreads.
const Epsilon = 1e-8

// Raw is the untyped output of a model inference call: a flat float32
// buffer plus its tensor shape.
type Raw struct {
	Shape []int
	Data  []float32
}

// Model is the black-box speaker-embedding backend.
//
// Implementations must accept mono float32 samples at SampleRate() and
// return a Raw tensor whose last dimension is Dimension(). They must be
// safe for concurrent use; the pipeline treats Extract as a blocking call.
type Model interface {
	// Extract computes a speaker embedding from mono float32 samples.
	Extract(samples []float32) (Raw, error)

	// SampleRate returns the sample rate the model expects, e.g. 16000.
	SampleRate() int

	// Dimension returns the embedding dimensionality, e.g. 192 or 512.
	Dimension() int

	// Close releases any resources held by the model.
	Close() error
}

// ModelFunc adapts a plain function to the Model interface. Used by tests
// to provide deterministic stub embeddings.
type ModelFunc struct {
	Fn   func(samples []float32) (Raw, error)
	Rate int
	Dim  int
}

func (m ModelFunc) Extract(samples []float32) (Raw, error) { return m.Fn(samples) }
func (m ModelFunc) SampleRate() int                        { return m.Rate }
func (m ModelFunc) Dimension() int                         { return m.Dim }
func (m ModelFunc) Close() error                           { return nil }

// ToUtteranceVector collapses a raw model output into one unit-normalized
// vector of length dim. See the package documentation for accepted ranks.
func ToUtteranceVector(raw Raw, dim int) ([]float64, error) {
	want := 1
	for _, d := range raw.Shape {
		if d <= 0 {
			return nil, fmt.Errorf("embedding: non-positive dimension in shape %v", raw.Shape)
		}
		want *= d
	}
	if want != len(raw.Data) {
		return nil, fmt.Errorf("embedding: shape %v does not match %d values", raw.Shape, len(raw.Data))
	}

	var frames int
	switch len(raw.Shape) {
	case 1:
		if raw.Shape[0] != dim {
			return nil, fmt.Errorf("embedding: got vector of length %d, want %d", raw.Shape[0], dim)
		}
		frames = 1
	case 2:
		if raw.Shape[1] != dim {
			return nil, fmt.Errorf("embedding: got frame dim %d, want %d", raw.Shape[1], dim)
		}
		frames = raw.Shape[0]
	case 3:
		if raw.Shape[0] != 1 {
			return nil, fmt.Errorf("embedding: batch size %d, want 1", raw.Shape[0])
		}
		if raw.Shape[2] != dim {
			return nil, fmt.Errorf("embedding: got frame dim %d, want %d", raw.Shape[2], dim)
		}
		frames = raw.Shape[1]
	default:
		return nil, fmt.Errorf("embedding: unsupported output rank %d (shape %v)", len(raw.Shape), raw.Shape)
	}

	// Collapse the frame dimension by arithmetic mean.
	v := make([]float64, dim)
	for f := 0; f < frames; f++ {
		base := f * dim
		for i := 0; i < dim; i++ {
			v[i] += float64(raw.Data[base+i])
		}
	}
	floats.Scale(1.0/float64(frames), v)

	return Normalize(v), nil
}

// Normalize returns v scaled to unit L2 norm (with an epsilon guard).
// The input is not modified.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	norm := floats.Norm(out, 2) + Epsilon
	floats.Scale(1.0/norm, out)
	return out
}

// Cosine returns the cosine similarity of two vectors. For the unit
// vectors this package produces it equals their dot product, but the
// norms are divided out anyway so the function is safe for any input.
func Cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// Aggregate averages a set of unit vectors and re-normalizes the mean.
// This is the enrollment template construction: a mean of per-segment
// embeddings is more robust to momentary noise than any single pass.
// Returns nil for an empty input.
func Aggregate(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	sum := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		floats.Add(sum, v)
	}
	floats.Scale(1.0/float64(len(vecs)), sum)
	return Normalize(sum)
}
