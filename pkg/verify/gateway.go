// Package verify is the voice-biometric decision pipeline: it turns a
// raw recording and a claimed identity into an accept/reject decision
// with a full diagnostic score breakdown.
//
// Verification fuses two similarity signals against the stored
// voiceprint. The full-utterance cosine is the primary signal; a top-K
// median over per-segment cosines stabilizes it against noisy or
// off-mic stretches. When enough other identities are enrolled, the
// fused score is z-normalized against that cohort so the decision asks
// "how unusual is this similarity for an impostor" rather than
// comparing raw cosines across voiceprints of varying quality.
//
// Expected rejections (silence, short audio, missing voiceprint) come
// back as Result values the caller can branch on; model and store
// failures come back as errors. A missing score always aborts the
// attempt, never counts as zero similarity.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/keyvox/keyvox/pkg/audio"
	"github.com/keyvox/keyvox/pkg/embedding"
	"github.com/keyvox/keyvox/pkg/voiceprint"
)

// ErrInsufficientAudio means no segment survived filtering during
// enrollment or self-check, where rejections surface as errors.
var ErrInsufficientAudio = errors.New("verify: no usable segments in recording")

// Gateway runs enrollment and verification over one embedding model and
// one voiceprint store. Construct it once at process start and share it;
// each attempt is synchronous and loads its own cohort snapshot, so
// concurrent attempts need no coordination here.
type Gateway struct {
	enc    *embedding.Encoder
	prints voiceprint.Store
	params Params
	log    *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithParams overrides the default pipeline tuning.
func WithParams(p Params) Option {
	return func(g *Gateway) { g.params = p }
}

// WithLogger sets the logger for attempt diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

// New creates a Gateway over the given embedding model and voiceprint
// store.
func New(model embedding.Model, prints voiceprint.Store, opts ...Option) *Gateway {
	g := &Gateway{
		prints: prints,
		params: DefaultParams(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.enc = embedding.NewEncoder(model,
		embedding.WithMinSegmentSeconds(g.params.MinSegmentSeconds))
	return g
}

// Params returns the pipeline tuning in effect.
func (g *Gateway) Params() Params { return g.params }

func (g *Gateway) enrollPreprocess() audio.PreprocessParams {
	return audio.PreprocessParams{
		RMSFloor:      g.params.RMSFloor,
		TrimThreshold: g.params.TrimThreshold,
		MinSeconds:    g.params.MinEnrollSeconds,
		TargetRMS:     g.params.EnrollTargetRMS,
	}
}

func (g *Gateway) verifyPreprocess() audio.PreprocessParams {
	return audio.PreprocessParams{
		RMSFloor:      g.params.RMSFloor,
		TrimThreshold: g.params.TrimThreshold,
		MinSeconds:    g.params.MinVerifySeconds,
	}
}

// Enroll builds a voiceprint from a recording and stores it for the
// username, replacing any existing template wholesale.
//
// The template is the re-normalized mean of per-segment unit embeddings
// over every sliding window of the cleaned recording, which is more
// robust to momentary noise than a single-pass embedding. Enrollment is
// stricter than verification: a longer minimum duration and a loudness
// rescale to a fixed target RMS.
//
// Quality rejections return audio.ErrTooSilent, audio.ErrTooShort or
// ErrInsufficientAudio; any other error is a model or store failure.
func (g *Gateway) Enroll(ctx context.Context, username string, rec audio.Buffer) error {
	user := voiceprint.CanonicalUsername(username)

	clean, err := audio.Preprocess(rec, g.enrollPreprocess())
	if err != nil {
		return err
	}

	segs := audio.SlidingWindows(clean, g.params.WindowSeconds, g.params.HopSeconds)
	vecs, err := g.enc.EncodeSegments(segs)
	if err != nil {
		return err
	}
	if len(vecs) == 0 {
		return ErrInsufficientAudio
	}

	template := embedding.Aggregate(vecs)
	if err := g.prints.Save(ctx, user, template); err != nil {
		return err
	}

	g.log.Info("voiceprint enrolled",
		"user", user,
		"segments", len(vecs),
		"duration_s", clean.Seconds())
	return nil
}

// Verify scores a recording against the claimed identity's stored
// voiceprint and decides accept or reject.
//
// Expected rejections (TooSilent, TooShort, InsufficientAudio,
// VoiceprintNotFound) come back as a Result with Rejection set and a nil
// error. A non-nil error means the attempt failed fatally (model
// inference or store I/O) and no decision was made.
func (g *Gateway) Verify(ctx context.Context, username string, rec audio.Buffer) (Result, error) {
	id := uuid.New()
	user := voiceprint.CanonicalUsername(username)
	p := g.params

	stored, err := g.prints.Load(ctx, user)
	if errors.Is(err, voiceprint.ErrNotFound) {
		g.log.Warn("verification rejected", "attempt", id, "user", user,
			"reason", RejectVoiceprintNotFound)
		return rejected(id, user, RejectVoiceprintNotFound), nil
	}
	if err != nil {
		return Result{}, err
	}
	// A template from a different embedding backend cannot be scored.
	if dim := g.enc.Model().Dimension(); len(stored) != dim {
		return Result{}, fmt.Errorf(
			"verify: stored voiceprint for %q has dimension %d, model expects %d; re-enrollment required",
			user, len(stored), dim)
	}

	clean, err := audio.Preprocess(rec, g.verifyPreprocess())
	switch {
	case errors.Is(err, audio.ErrTooSilent):
		return rejected(id, user, RejectTooSilent), nil
	case errors.Is(err, audio.ErrTooShort):
		return rejected(id, user, RejectTooShort), nil
	case err != nil:
		return Result{}, err
	}

	// Primary signal: whole-utterance embedding against the template.
	fullVec, err := g.enc.EncodeUtterance(clean)
	if err != nil {
		return Result{}, err
	}
	fullCos := embedding.Cosine(fullVec, stored)

	// Stabilizer: per-segment cosines over the most voiced windows.
	segs := audio.SlidingWindows(clean, p.WindowSeconds, p.HopSeconds)
	if len(segs) > p.MaxSegments {
		segs = segs[:p.MaxSegments]
	}
	segs = audio.PruneByEnergy(segs, p.KeepEnergyFrac, p.MinKeepSegments)

	segVecs, err := g.enc.EncodeSegments(segs)
	if err != nil {
		return Result{}, err
	}
	if len(segVecs) == 0 {
		return rejected(id, user, RejectInsufficientAudio), nil
	}

	scores := make([]float64, len(segVecs))
	for i, v := range segVecs {
		scores[i] = embedding.Cosine(v, stored)
	}
	segCos := topKMedian(scores, topK(len(scores), p.TopKFrac, p.MinTopK))

	fused := p.Alpha*fullCos + (1-p.Alpha)*segCos

	// Aggregate probe for cohort scoring only. The fused score stays
	// the quantity being normalized.
	agg := embedding.Aggregate(segVecs)

	var cohortScores []float64
	for entry, err := range g.prints.ListAllExcept(ctx, user) {
		if err != nil {
			return Result{}, err
		}
		// Stale templates from an older backend carry no usable
		// population signal; leave them out of the statistics.
		if len(entry.Vector) != len(agg) {
			g.log.Debug("skipping stale cohort voiceprint",
				"attempt", id, "user", entry.Username,
				"dim", len(entry.Vector), "want", len(agg))
			continue
		}
		cohortScores = append(cohortScores, embedding.Cosine(agg, entry.Vector))
	}

	res := Result{
		AttemptID:  id,
		Username:   user,
		FullCos:    fullCos,
		SegCos:     segCos,
		Fused:      fused,
		CohortSize: len(cohortScores),
	}

	if len(cohortScores) >= p.CohortMinSize {
		m := median(cohortScores)
		d := mad(cohortScores)
		sigma := madToStd*d + sigmaEpsilon
		res.CohortMedian = m
		res.CohortMAD = d
		res.ZNormalized = true
		res.FinalScore = (fused - m) / sigma
		res.Threshold = p.ZThreshold
	} else {
		res.FinalScore = fused
		res.Threshold = p.AbsoluteThreshold
	}
	res.Accepted = res.FinalScore >= res.Threshold

	g.log.Info("verification scored",
		"attempt", id,
		"user", user,
		"accepted", res.Accepted,
		"full_cos", fullCos,
		"seg_cos", segCos,
		"fused", fused,
		"final", res.FinalScore,
		"threshold", res.Threshold,
		"cohort", res.CohortSize,
		"znorm", res.ZNormalized)
	return res, nil
}

// Compare runs two recordings of the same speaker through the
// verification pipeline and scores them against each other. It is a
// diagnostic self-check for microphone and environment quality, not an
// authentication decision; the result uses the absolute threshold.
//
// Quality rejections return audio.ErrTooSilent or audio.ErrTooShort.
func (g *Gateway) Compare(ctx context.Context, a, b audio.Buffer) (Result, error) {
	fullA, aggA, err := g.encodeProbe(a)
	if err != nil {
		return Result{}, err
	}
	fullB, aggB, err := g.encodeProbe(b)
	if err != nil {
		return Result{}, err
	}

	p := g.params
	res := Result{
		AttemptID: uuid.New(),
		FullCos:   embedding.Cosine(fullA, fullB),
		SegCos:    embedding.Cosine(aggA, aggB),
	}
	res.Fused = p.Alpha*res.FullCos + (1-p.Alpha)*res.SegCos
	res.FinalScore = res.Fused
	res.Threshold = p.AbsoluteThreshold
	res.Accepted = res.FinalScore >= res.Threshold

	g.log.Info("self-check scored",
		"attempt", res.AttemptID,
		"full_cos", res.FullCos,
		"seg_cos", res.SegCos,
		"fused", res.Fused,
		"passed", res.Accepted)
	return res, nil
}

// encodeProbe cleans a recording and returns its full-utterance
// embedding plus the aggregate of its pruned segment embeddings. The
// aggregate falls back to the full embedding when no segment survives.
func (g *Gateway) encodeProbe(rec audio.Buffer) (full, agg []float64, err error) {
	clean, err := audio.Preprocess(rec, g.verifyPreprocess())
	if err != nil {
		return nil, nil, err
	}

	full, err = g.enc.EncodeUtterance(clean)
	if err != nil {
		return nil, nil, err
	}

	p := g.params
	segs := audio.SlidingWindows(clean, p.WindowSeconds, p.HopSeconds)
	if len(segs) > p.MaxSegments {
		segs = segs[:p.MaxSegments]
	}
	segs = audio.PruneByEnergy(segs, p.KeepEnergyFrac, p.MinKeepSegments)

	vecs, err := g.enc.EncodeSegments(segs)
	if err != nil {
		return nil, nil, err
	}
	if len(vecs) == 0 {
		return full, full, nil
	}
	return full, embedding.Aggregate(vecs), nil
}
