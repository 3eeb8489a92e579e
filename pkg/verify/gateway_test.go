package verify_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/keyvox/keyvox/pkg/audio"
	"github.com/keyvox/keyvox/pkg/embedding"
	"github.com/keyvox/keyvox/pkg/kv"
	"github.com/keyvox/keyvox/pkg/verify"
	"github.com/keyvox/keyvox/pkg/voiceprint"
)

const testRate = 16000

func sine(freq, seconds, amp float64) audio.Buffer {
	n := int(seconds * testRate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	return audio.Buffer{Samples: samples, Rate: testRate}
}

// toneModel is a deterministic stub: it buckets the input's zero-crossing
// rate into one basis vector, so recordings of the same tone always embed
// identically and tones far apart embed orthogonally.
func toneModel(calls *int) embedding.Model {
	const dim = 16
	return embedding.ModelFunc{
		Rate: testRate,
		Dim:  dim,
		Fn: func(samples []float32) (embedding.Raw, error) {
			if calls != nil {
				*calls++
			}
			zc := 0
			for i := 1; i < len(samples); i++ {
				if (samples[i-1] < 0) != (samples[i] < 0) {
					zc++
				}
			}
			perSec := float64(zc) * testRate / float64(len(samples))
			idx := int(perSec / 150)
			if idx >= dim {
				idx = dim - 1
			}
			vec := make([]float32, dim)
			vec[idx] = 1
			return embedding.Raw{Shape: []int{dim}, Data: vec}, nil
		},
	}
}

func newGateway(t *testing.T, model embedding.Model) (*verify.Gateway, *voiceprint.KV) {
	t.Helper()
	mem := kv.NewMemory(nil)
	t.Cleanup(func() { mem.Close() })
	prints := voiceprint.NewKV(mem)
	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return verify.New(model, prints, verify.WithLogger(log)), prints
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestEnrollThenVerifySameSignal(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	rec := sine(440, 5, 0.5)
	if err := g.Enroll(ctx, "alice", rec); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	res, err := g.Verify(ctx, "alice", sine(440, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Rejected() {
		t.Fatalf("unexpected rejection: %v", res.Rejection)
	}
	if !res.Accepted {
		t.Errorf("same signal not accepted: %+v", res)
	}
	if math.Abs(res.FullCos-1) > 1e-6 {
		t.Errorf("FullCos = %v, want 1", res.FullCos)
	}
	if math.Abs(res.Fused-1) > 1e-6 {
		t.Errorf("Fused = %v, want 1", res.Fused)
	}
	// No cohort enrolled, so the absolute threshold applies.
	if res.ZNormalized {
		t.Error("z-normalization applied with empty cohort")
	}
	if res.Threshold != g.Params().AbsoluteThreshold {
		t.Errorf("Threshold = %v, want %v", res.Threshold, g.Params().AbsoluteThreshold)
	}
}

func TestVerifyOrthogonalProbeRejected(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	if err := g.Enroll(ctx, "alice", sine(440, 5, 0.5)); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	// 110 Hz embeds into a different basis vector than 440 Hz.
	res, err := g.Verify(ctx, "alice", sine(110, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Rejected() {
		t.Fatalf("unexpected rejection: %v", res.Rejection)
	}
	if res.Accepted {
		t.Errorf("orthogonal probe accepted: %+v", res)
	}
	if math.Abs(res.FullCos) > 1e-6 {
		t.Errorf("FullCos = %v, want 0", res.FullCos)
	}
}

func TestVerifyUnknownUser(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	res, err := g.Verify(ctx, "mallory", sine(440, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Rejection != verify.RejectVoiceprintNotFound {
		t.Fatalf("Rejection = %v, want %v", res.Rejection, verify.RejectVoiceprintNotFound)
	}
	if res.Accepted || res.FullCos != 0 || res.FinalScore != 0 {
		t.Errorf("scores computed for unknown user: %+v", res)
	}
}

func TestVerifySilentBufferHaltsBeforeModel(t *testing.T) {
	ctx := context.Background()
	var calls int
	g, _ := newGateway(t, toneModel(&calls))

	if err := g.Enroll(ctx, "alice", sine(440, 5, 0.5)); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	calls = 0

	silent := audio.Buffer{Samples: make([]float32, 5*testRate), Rate: testRate}
	res, err := g.Verify(ctx, "alice", silent)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Rejection != verify.RejectTooSilent {
		t.Fatalf("Rejection = %v, want %v", res.Rejection, verify.RejectTooSilent)
	}
	if calls != 0 {
		t.Errorf("model called %d times for silent input", calls)
	}
}

func TestVerifyShortBufferRejected(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	if err := g.Enroll(ctx, "alice", sine(440, 5, 0.5)); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	res, err := g.Verify(ctx, "alice", sine(440, 1, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Rejection != verify.RejectTooShort {
		t.Fatalf("Rejection = %v, want %v", res.Rejection, verify.RejectTooShort)
	}
}

func TestEnrollRejectsShortAndSilent(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	if err := g.Enroll(ctx, "alice", sine(440, 1.8, 0.5)); !errors.Is(err, audio.ErrTooShort) {
		t.Fatalf("short enrollment: got %v, want ErrTooShort", err)
	}
	silent := audio.Buffer{Samples: make([]float32, 5*testRate), Rate: testRate}
	if err := g.Enroll(ctx, "alice", silent); !errors.Is(err, audio.ErrTooSilent) {
		t.Fatalf("silent enrollment: got %v, want ErrTooSilent", err)
	}
}

func TestVerifySmallCohortSkipsNormalization(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	// alice plus three cohort users, each a distinct tone.
	enroll := map[string]float64{"alice": 440, "bob": 100, "carol": 160, "dave": 250}
	for user, freq := range enroll {
		if err := g.Enroll(ctx, user, sine(freq, 5, 0.5)); err != nil {
			t.Fatalf("Enroll %s: %v", user, err)
		}
	}

	res, err := g.Verify(ctx, "alice", sine(440, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.CohortSize != 3 {
		t.Fatalf("CohortSize = %d, want 3", res.CohortSize)
	}
	if res.ZNormalized {
		t.Error("z-normalization applied with cohort of 3")
	}
	if res.FinalScore != res.Fused {
		t.Errorf("FinalScore = %v, want raw fused %v", res.FinalScore, res.Fused)
	}
}

func TestVerifyLargeCohortZNormalizes(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	enroll := map[string]float64{
		"alice": 440, "bob": 100, "carol": 160,
		"dave": 250, "erin": 330, "frank": 560,
	}
	for user, freq := range enroll {
		if err := g.Enroll(ctx, user, sine(freq, 5, 0.5)); err != nil {
			t.Fatalf("Enroll %s: %v", user, err)
		}
	}

	res, err := g.Verify(ctx, "alice", sine(440, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.CohortSize != 5 {
		t.Fatalf("CohortSize = %d, want 5", res.CohortSize)
	}
	if !res.ZNormalized {
		t.Fatal("expected z-normalization with cohort of 5")
	}
	if res.Threshold != g.Params().ZThreshold {
		t.Errorf("Threshold = %v, want %v", res.Threshold, g.Params().ZThreshold)
	}
	// Every cohort tone is orthogonal to alice's, so the fused score of
	// 1.0 sits far above the impostor distribution.
	if !res.Accepted {
		t.Errorf("genuine probe rejected under z-norm: %+v", res)
	}
	if res.FinalScore <= 0 {
		t.Errorf("FinalScore = %v, want > 0", res.FinalScore)
	}
}

func TestVerifyModelFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	modelErr := errors.New("backend exploded")
	broken := embedding.ModelFunc{
		Rate: testRate,
		Dim:  16,
		Fn: func([]float32) (embedding.Raw, error) {
			return embedding.Raw{}, modelErr
		},
	}

	mem := kv.NewMemory(nil)
	t.Cleanup(func() { mem.Close() })
	prints := voiceprint.NewKV(mem)
	vec := make([]float64, 16)
	vec[0] = 1
	if err := prints.Save(ctx, "alice", vec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g := verify.New(broken, prints,
		verify.WithLogger(slog.New(slog.DiscardHandler)))
	_, err := g.Verify(ctx, "alice", sine(440, 5, 0.5))
	if !errors.Is(err, modelErr) {
		t.Fatalf("expected model failure to surface, got %v", err)
	}
}

func TestVerifyStaleVoiceprintDimension(t *testing.T) {
	ctx := context.Background()
	g, prints := newGateway(t, toneModel(nil))

	// A template saved by an older backend with a smaller embedding
	// dimension must be reported, not scored.
	if err := prints.Save(ctx, "alice", []float64{1, 0}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := g.Verify(ctx, "alice", sine(440, 5, 0.5))
	if err == nil {
		t.Fatal("expected error for stale voiceprint dimension")
	}
}

func TestVerifyCohortSkipsStaleVoiceprint(t *testing.T) {
	ctx := context.Background()
	g, prints := newGateway(t, toneModel(nil))

	enroll := map[string]float64{
		"alice": 440, "bob": 100, "carol": 160,
		"dave": 250, "erin": 330, "frank": 560,
	}
	for user, freq := range enroll {
		if err := g.Enroll(ctx, user, sine(freq, 5, 0.5)); err != nil {
			t.Fatalf("Enroll %s: %v", user, err)
		}
	}
	// grace's template predates the current backend and has the wrong
	// dimension. It must not poison the cohort statistics.
	if err := prints.Save(ctx, "grace", []float64{1, 0}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := g.Verify(ctx, "alice", sine(440, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.CohortSize != 5 {
		t.Fatalf("CohortSize = %d, want 5", res.CohortSize)
	}
	if !res.ZNormalized {
		t.Fatal("expected z-normalization with cohort of 5")
	}
	if !res.Accepted {
		t.Errorf("genuine probe rejected: %+v", res)
	}
}

func TestCompare(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	t.Run("same tone passes", func(t *testing.T) {
		res, err := g.Compare(ctx, sine(440, 5, 0.5), sine(440, 5, 0.5))
		if err != nil {
			t.Fatalf("Compare: %v", err)
		}
		if !res.Accepted {
			t.Errorf("identical recordings failed self-check: %+v", res)
		}
		if math.Abs(res.FullCos-1) > 1e-6 {
			t.Errorf("FullCos = %v, want 1", res.FullCos)
		}
	})

	t.Run("different tones fail", func(t *testing.T) {
		res, err := g.Compare(ctx, sine(440, 5, 0.5), sine(110, 5, 0.5))
		if err != nil {
			t.Fatalf("Compare: %v", err)
		}
		if res.Accepted {
			t.Errorf("unrelated recordings passed self-check: %+v", res)
		}
	})

	t.Run("silent input errors", func(t *testing.T) {
		silent := audio.Buffer{Samples: make([]float32, 5*testRate), Rate: testRate}
		if _, err := g.Compare(ctx, silent, sine(440, 5, 0.5)); !errors.Is(err, audio.ErrTooSilent) {
			t.Fatalf("got %v, want ErrTooSilent", err)
		}
	})
}

func TestReenrollmentReplacesTemplate(t *testing.T) {
	ctx := context.Background()
	g, _ := newGateway(t, toneModel(nil))

	if err := g.Enroll(ctx, "alice", sine(440, 5, 0.5)); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := g.Enroll(ctx, "alice", sine(110, 5, 0.5)); err != nil {
		t.Fatalf("re-Enroll: %v", err)
	}

	// The old 440 Hz probe no longer matches; the new 110 Hz one does.
	res, err := g.Verify(ctx, "alice", sine(440, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Accepted {
		t.Error("old probe still accepted after re-enrollment")
	}
	res, err = g.Verify(ctx, "alice", sine(110, 5, 0.5))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Accepted {
		t.Errorf("new probe rejected after re-enrollment: %+v", res)
	}
}
