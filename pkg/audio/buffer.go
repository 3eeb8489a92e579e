// Package audio provides the signal-domain half of the verification
// pipeline: amplitude normalization, silence trimming, quality gates,
// sliding-window segmentation with energy pruning, and resampling to the
// embedding model's sample rate.
//
// All functions operate on mono float32 sample buffers. A [Buffer] is
// treated as immutable once captured: transforms return new buffers (or
// sub-slices that are never written through).
package audio

import (
	"math"
	"time"
)

// Buffer is a mono audio signal: float32 samples at a fixed sample rate.
type Buffer struct {
	Samples []float32
	Rate    int // samples per second, e.g. 16000
}

// Seconds returns the buffer duration in seconds.
func (b Buffer) Seconds() float64 {
	if b.Rate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.Rate)
}

// Duration returns the buffer duration.
func (b Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// RMS returns the root-mean-square amplitude of the signal.
// Returns 0 for an empty buffer.
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// Peak returns the maximum absolute sample value.
func (b Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// Clone returns a deep copy of the buffer.
func (b Buffer) Clone() Buffer {
	cp := make([]float32, len(b.Samples))
	copy(cp, b.Samples)
	return Buffer{Samples: cp, Rate: b.Rate}
}
