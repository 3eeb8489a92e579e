package audio

import (
	"errors"
	"math"
)

// Expected rejections from Preprocess. These are quality gates the caller
// can recover from by prompting for a new recording.
var (
	// ErrTooSilent means the normalized signal's RMS is below the floor.
	ErrTooSilent = errors.New("audio: recording too silent")

	// ErrTooShort means the trimmed signal is shorter than the minimum
	// duration.
	ErrTooShort = errors.New("audio: recording too short")
)

const peakEpsilon = 1e-6

// PreprocessParams configures the quality gates applied before embedding.
type PreprocessParams struct {
	// RMSFloor rejects near-silent recordings: after peak normalization,
	// RMS below this value returns ErrTooSilent. Default 0.01.
	RMSFloor float64

	// TrimThreshold is the amplitude envelope level below which leading
	// and trailing samples are trimmed. Default 0.005.
	TrimThreshold float64

	// MinSeconds rejects recordings whose trimmed duration is below this
	// value with ErrTooShort. Enrollment uses a stricter minimum than
	// verification.
	MinSeconds float64

	// TargetRMS, when positive, rescales the signal to this RMS level
	// after the silence gate. Enrollment uses this to keep templates at a
	// consistent loudness; verification leaves it zero.
	TargetRMS float64
}

// DefaultPreprocessParams returns the verification-time defaults.
func DefaultPreprocessParams() PreprocessParams {
	return PreprocessParams{
		RMSFloor:      0.01,
		TrimThreshold: 0.005,
		MinSeconds:    1.5,
	}
}

// Preprocess peak-normalizes a recording, applies the silence gate, trims
// leading/trailing quiet samples, and enforces the minimum duration.
//
// The input buffer is not modified. On rejection the returned error is
// ErrTooSilent or ErrTooShort; any other outcome yields the cleaned signal.
func Preprocess(raw Buffer, p PreprocessParams) (Buffer, error) {
	out := raw.Clone()

	// Peak normalize so the gates see a consistent amplitude scale.
	peak := out.Peak() + peakEpsilon
	scale := float32(1.0 / peak)
	for i := range out.Samples {
		out.Samples[i] *= scale
	}

	if out.RMS() < p.RMSFloor {
		return Buffer{}, ErrTooSilent
	}

	if p.TargetRMS > 0 {
		gain := float32(p.TargetRMS / (out.RMS() + peakEpsilon))
		for i := range out.Samples {
			out.Samples[i] *= gain
		}
	}

	out = TrimSilence(out, p.TrimThreshold)

	if out.Seconds() < p.MinSeconds {
		return Buffer{}, ErrTooShort
	}
	return out, nil
}

// TrimSilence removes leading and trailing samples whose amplitude envelope
// is at or below threshold. If nothing exceeds the threshold the input is
// returned unchanged, leaving the duration gate downstream to reject it.
func TrimSilence(b Buffer, threshold float64) Buffer {
	first, last := -1, -1
	for i, s := range b.Samples {
		if math.Abs(float64(s)) > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return b
	}
	return Buffer{Samples: b.Samples[first : last+1], Rate: b.Rate}
}
