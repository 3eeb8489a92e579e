package audio

import (
	"errors"
	"math"
	"testing"
)

const testRate = 16000

// sine produces a mono sine tone of the given duration and amplitude.
func sine(freq float64, seconds float64, amp float64) Buffer {
	n := int(seconds * testRate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	return Buffer{Samples: samples, Rate: testRate}
}

func TestBufferRMS(t *testing.T) {
	// A full-scale sine has RMS 1/sqrt(2).
	b := sine(440, 1.0, 1.0)
	want := 1.0 / math.Sqrt2
	if got := b.RMS(); math.Abs(got-want) > 1e-3 {
		t.Fatalf("RMS = %f, want %f", got, want)
	}
	if got := (Buffer{Rate: testRate}).RMS(); got != 0 {
		t.Fatalf("empty RMS = %f, want 0", got)
	}
}

func TestPreprocessTooSilent(t *testing.T) {
	// All-zero signal: peak normalization cannot rescue it.
	b := Buffer{Samples: make([]float32, 3*testRate), Rate: testRate}
	_, err := Preprocess(b, DefaultPreprocessParams())
	if !errors.Is(err, ErrTooSilent) {
		t.Fatalf("expected ErrTooSilent, got %v", err)
	}
}

func TestPreprocessTooShort(t *testing.T) {
	b := sine(440, 0.5, 0.8)
	_, err := Preprocess(b, DefaultPreprocessParams())
	if !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestPreprocessTrimsPadding(t *testing.T) {
	// 1s silence + 3s tone + 1s silence.
	tone := sine(440, 3.0, 0.5)
	pad := make([]float32, testRate)
	samples := append(append(append([]float32{}, pad...), tone.Samples...), pad...)
	b := Buffer{Samples: samples, Rate: testRate}

	out, err := Preprocess(b, DefaultPreprocessParams())
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	// Trimmed length should be close to the 3s tone, not the 5s raw input.
	if got := out.Seconds(); got < 2.9 || got > 3.1 {
		t.Fatalf("trimmed duration = %fs, want ~3s", got)
	}
	// Input must be untouched.
	if b.Samples[0] != 0 || len(b.Samples) != 5*testRate {
		t.Fatal("input buffer was modified")
	}
}

func TestTrimSilenceAllSilenceReturnsOriginal(t *testing.T) {
	// Everything below the trim threshold but above the RMS floor is
	// impossible after peak normalization, so test TrimSilence directly.
	b := Buffer{Samples: make([]float32, testRate), Rate: testRate}
	out := TrimSilence(b, 0.005)
	if len(out.Samples) != len(b.Samples) {
		t.Fatalf("all-silence trim changed length: %d != %d", len(out.Samples), len(b.Samples))
	}
}

func TestPreprocessTargetRMS(t *testing.T) {
	b := sine(440, 3.0, 0.9)
	p := DefaultPreprocessParams()
	p.TargetRMS = 0.05
	p.MinSeconds = 2.0
	out, err := Preprocess(b, p)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if got := out.RMS(); math.Abs(got-0.05) > 0.005 {
		t.Fatalf("RMS after target scaling = %f, want ~0.05", got)
	}
}

func TestSlidingWindowsShortSignal(t *testing.T) {
	b := sine(440, 1.0, 0.5) // shorter than the 1.5s window
	segs := SlidingWindows(b, 1.5, 0.5)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if len(segs[0].Samples) != len(b.Samples) {
		t.Fatalf("single segment length %d, want full signal %d", len(segs[0].Samples), len(b.Samples))
	}
}

func TestSlidingWindowsCount(t *testing.T) {
	// Signal of length win + 3*hop yields exactly 4 windows.
	winSec, hopSec := 1.5, 0.5
	n := int((winSec + 3*hopSec) * testRate)
	b := Buffer{Samples: make([]float32, n), Rate: testRate}
	segs := SlidingWindows(b, winSec, hopSec)
	if len(segs) != 4 {
		t.Fatalf("got %d segments, want 4", len(segs))
	}
	win := int(winSec * testRate)
	for i, s := range segs {
		if len(s.Samples) != win {
			t.Fatalf("segment %d length %d, want %d", i, len(s.Samples), win)
		}
	}
}

func TestPruneByEnergy(t *testing.T) {
	// Six constant-amplitude segments with known RMS ranking.
	amps := []float64{0.1, 0.9, 0.3, 0.7, 0.5, 0.05}
	segs := make([]Buffer, len(amps))
	for i, a := range amps {
		samples := make([]float32, testRate/2)
		for j := range samples {
			samples[j] = float32(a)
		}
		segs[i] = Buffer{Samples: samples, Rate: testRate}
	}

	kept := PruneByEnergy(segs, 0.6, 2)
	// round(0.6*6) = 4, above the minimum of 2.
	if len(kept) != 4 {
		t.Fatalf("kept %d segments, want 4", len(kept))
	}
	wantOrder := []float32{0.9, 0.7, 0.5, 0.3}
	for i, s := range kept {
		if s.Samples[0] != wantOrder[i] {
			t.Fatalf("kept[%d] amplitude = %f, want %f", i, s.Samples[0], wantOrder[i])
		}
	}

	// With 3 segments round(0.6*3) = 2, so the minimum holds.
	kept = PruneByEnergy(segs[:3], 0.6, 2)
	if len(kept) != 2 {
		t.Fatalf("kept %d of 3 segments, want 2", len(kept))
	}

	// Single segment passes through untouched.
	kept = PruneByEnergy(segs[:1], 0.6, 2)
	if len(kept) != 1 {
		t.Fatalf("kept %d of 1 segment, want 1", len(kept))
	}
}

func TestResamplePassthrough(t *testing.T) {
	b := sine(440, 1.0, 0.5)
	out, err := Resample(b, testRate)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out.Samples) != len(b.Samples) || out.Rate != testRate {
		t.Fatal("same-rate resample must be a passthrough")
	}
}
