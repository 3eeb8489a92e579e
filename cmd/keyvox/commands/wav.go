package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"

	"github.com/keyvox/keyvox/pkg/audio"
)

// loadWAV reads a WAV file into a mono buffer. Stereo input is downmixed
// by averaging the channels.
func loadWAV(path string) (audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Buffer{}, err
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("WAV format: %w", err)
	}
	channels := int(format.NumChannels)
	if channels < 1 || channels > 2 {
		return audio.Buffer{}, fmt.Errorf("WAV: only mono or stereo supported, got %d channels", channels)
	}

	var samples []float32
	for {
		chunk, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("reading WAV samples: %w", err)
		}
		for _, s := range chunk {
			var v float64
			if channels == 1 {
				v = r.FloatValue(s, 0)
			} else {
				v = (r.FloatValue(s, 0) + r.FloatValue(s, 1)) / 2
			}
			samples = append(samples, float32(v))
		}
	}
	if len(samples) == 0 {
		return audio.Buffer{}, fmt.Errorf("WAV: no samples in %s", path)
	}
	return audio.Buffer{Samples: samples, Rate: int(format.SampleRate)}, nil
}
