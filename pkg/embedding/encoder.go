package embedding

import (
	"fmt"

	"github.com/keyvox/keyvox/pkg/audio"
)

// Encoder turns audio buffers into unit-normalized embedding vectors.
// It owns the resample-to-model-rate step and the minimum-duration filter
// for segments; the model itself stays a black box.
type Encoder struct {
	model Model

	// minSegSeconds drops segments too short to embed meaningfully.
	minSegSeconds float64
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithMinSegmentSeconds sets the segment duration below which segments
// are discarded before embedding (default 0.6).
func WithMinSegmentSeconds(s float64) EncoderOption {
	return func(e *Encoder) {
		if s > 0 {
			e.minSegSeconds = s
		}
	}
}

// NewEncoder creates an Encoder over the given model.
func NewEncoder(model Model, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		model:         model,
		minSegSeconds: 0.6,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the underlying embedding backend.
func (e *Encoder) Model() Model { return e.model }

// EncodeUtterance embeds a whole signal into one unit vector. The signal
// is resampled to the model's rate if needed.
func (e *Encoder) EncodeUtterance(b audio.Buffer) ([]float64, error) {
	b, err := audio.Resample(b, e.model.SampleRate())
	if err != nil {
		return nil, err
	}
	raw, err := e.model.Extract(b.Samples)
	if err != nil {
		return nil, fmt.Errorf("embedding: model inference: %w", err)
	}
	return ToUtteranceVector(raw, e.model.Dimension())
}

// EncodeSegments embeds each segment that survives the minimum-duration
// filter. The result may be empty when every segment was too short;
// callers decide whether that aborts the attempt.
func (e *Encoder) EncodeSegments(segs []audio.Buffer) ([][]float64, error) {
	var vecs [][]float64
	for _, seg := range segs {
		if seg.Seconds() < e.minSegSeconds {
			continue
		}
		v, err := e.EncodeUtterance(seg)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}
