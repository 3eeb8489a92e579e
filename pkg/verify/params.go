package verify

// Params are the tunables of the verification pipeline. The defaults are
// the empirically tuned values the system ships with; none of them are
// derived from first principles, so deployments with labeled data may
// recalibrate Alpha, CohortMinSize and the thresholds.
type Params struct {
	// Alpha weights the full-utterance cosine against the segment
	// score: fused = Alpha*full + (1-Alpha)*seg. Default 0.7.
	Alpha float64

	// WindowSeconds and HopSeconds control sliding-window segmentation.
	// Defaults 1.5 and 0.5.
	WindowSeconds float64
	HopSeconds    float64

	// MaxSegments caps how many windows verification considers, to
	// bound cost and avoid over-weighting long tails. Default 8.
	MaxSegments int

	// KeepEnergyFrac and MinKeepSegments control energy pruning: when
	// more than one segment exists, keep the top KeepEnergyFrac by RMS
	// but never fewer than MinKeepSegments. Defaults 0.6 and 2.
	KeepEnergyFrac  float64
	MinKeepSegments int

	// MinSegmentSeconds drops segments too short to embed. Default 0.6.
	MinSegmentSeconds float64

	// TopKFrac and MinTopK pick how many of the best segment cosines
	// feed the median: K = max(MinTopK, round(TopKFrac*n)). Defaults
	// 0.5 and 2.
	TopKFrac float64
	MinTopK  int

	// CohortMinSize is the smallest cohort trusted for z-normalization.
	// Below it the absolute threshold applies to the raw fused score.
	// Default 5.
	CohortMinSize int

	// AbsoluteThreshold is the accept cutoff on the raw fused cosine
	// when no usable cohort exists. Default 0.68.
	AbsoluteThreshold float64

	// ZThreshold is the accept cutoff in z-normalized space. Default 0:
	// the probe must beat the typical impostor similarity.
	ZThreshold float64

	// RMSFloor and TrimThreshold are the preprocessing gates shared by
	// enrollment and verification. Defaults 0.01 and 0.005.
	RMSFloor      float64
	TrimThreshold float64

	// MinEnrollSeconds and MinVerifySeconds are the minimum trimmed
	// durations. Enrollment is stricter. Defaults 2.0 and 1.5.
	MinEnrollSeconds float64
	MinVerifySeconds float64

	// EnrollTargetRMS rescales enrollment audio to a consistent
	// loudness after the silence gate. Default 0.05. Verification does
	// not rescale.
	EnrollTargetRMS float64
}

// DefaultParams returns the shipped pipeline tuning.
func DefaultParams() Params {
	return Params{
		Alpha:             0.7,
		WindowSeconds:     1.5,
		HopSeconds:        0.5,
		MaxSegments:       8,
		KeepEnergyFrac:    0.6,
		MinKeepSegments:   2,
		MinSegmentSeconds: 0.6,
		TopKFrac:          0.5,
		MinTopK:           2,
		CohortMinSize:     5,
		AbsoluteThreshold: 0.68,
		ZThreshold:        0,
		RMSFloor:          0.01,
		TrimThreshold:     0.005,
		MinEnrollSeconds:  2.0,
		MinVerifySeconds:  1.5,
		EnrollTargetRMS:   0.05,
	}
}
