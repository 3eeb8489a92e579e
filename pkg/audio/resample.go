package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts a buffer to the given sample rate. The conversion is a
// whole-buffer pass, suitable for utterance-sized inputs.
// When the rates already match, the input is returned unchanged.
func Resample(b Buffer, dstRate int) (Buffer, error) {
	if b.Rate == dstRate {
		return b, nil
	}
	if b.Rate <= 0 || dstRate <= 0 {
		return Buffer{}, fmt.Errorf("audio: invalid sample rates %d -> %d", b.Rate, dstRate)
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(b.Rate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: create resampler: %w", err)
	}

	input := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		input[i] = float64(s)
	}
	output, err := rs.Process(input)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: resample: %w", err)
	}

	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return Buffer{Samples: out, Rate: dstRate}, nil
}
