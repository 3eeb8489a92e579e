package verify

import "github.com/google/uuid"

// RejectReason classifies the expected, caller-recoverable rejections of
// an attempt. These are outcomes, not errors: the pipeline ran to a
// deliberate stop. Fatal conditions (model failure, store I/O) surface
// as Go errors instead.
type RejectReason int

const (
	// RejectNone means the attempt was scored; check Accepted.
	RejectNone RejectReason = iota

	// RejectTooSilent means the recording's RMS was below the floor.
	// Recoverable by re-recording louder.
	RejectTooSilent

	// RejectTooShort means the trimmed recording was below the minimum
	// duration. Recoverable by re-recording.
	RejectTooShort

	// RejectInsufficientAudio means no segment survived filtering at
	// scoring time. Recoverable by re-recording.
	RejectInsufficientAudio

	// RejectVoiceprintNotFound means the claimed identity has no stored
	// template. Not retryable without enrollment.
	RejectVoiceprintNotFound
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectTooSilent:
		return "too_silent"
	case RejectTooShort:
		return "too_short"
	case RejectInsufficientAudio:
		return "insufficient_audio"
	case RejectVoiceprintNotFound:
		return "voiceprint_not_found"
	default:
		return "unknown"
	}
}

// Result is the full diagnostic breakdown of one verification attempt.
// It always carries every score that was computed, never just a boolean;
// a rejected attempt has Rejection set and zero scores.
type Result struct {
	// AttemptID identifies this attempt in logs and diagnostics.
	AttemptID uuid.UUID

	// Username is the canonical (lowercase) claimed identity.
	Username string

	// Accepted is the decision: FinalScore >= Threshold.
	Accepted bool

	// Rejection is non-zero when the attempt stopped before a decision
	// could be scored.
	Rejection RejectReason

	// FullCos is the cosine of the whole-utterance probe embedding
	// against the stored voiceprint.
	FullCos float64

	// SegCos is the median of the top-K per-segment cosines.
	SegCos float64

	// Fused is Alpha*FullCos + (1-Alpha)*SegCos.
	Fused float64

	// Cohort statistics, populated only when ZNormalized is true.
	CohortSize   int
	CohortMedian float64
	CohortMAD    float64

	// ZNormalized reports whether FinalScore is a cohort z-score
	// (threshold in z-space) or the raw fused cosine (absolute
	// threshold).
	ZNormalized bool

	// FinalScore and Threshold are the pair the decision compares.
	FinalScore float64
	Threshold  float64
}

// Rejected reports whether the attempt stopped on an expected rejection.
func (r Result) Rejected() bool { return r.Rejection != RejectNone }

func rejected(id uuid.UUID, username string, reason RejectReason) Result {
	return Result{AttemptID: id, Username: username, Rejection: reason}
}
