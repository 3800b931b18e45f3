package constants

// Stage names a step of a verification run. The same names are
// used for the loading step of the state machine and for the stage
// recorded on a failed result, except that a download in progress
// is reported as StageArtifactDownload and a failed download as
// StageArtifactFetch.
type Stage string

const (
	StagePointerFetch     Stage = "pointer_fetch"
	StageArtifactDownload Stage = "artifact_download"
	StageArtifactFetch    Stage = "artifact_fetch"
	StageDigestCompute    Stage = "digest_compute"
)

// Outcome is the terminal result of a verification run.
type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeFailed   Outcome = "failed"
)

// Phase is the coarse state of the verification state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseVerified  Phase = "verified"
	PhaseMismatch  Phase = "mismatch"
	PhaseFailed    Phase = "failed"
	PhaseAbandoned Phase = "abandoned"
)

// LoadingSteps lists the loading steps in the order a run
// passes through them.
var LoadingSteps = []Stage{
	StagePointerFetch,
	StageArtifactDownload,
	StageDigestCompute,
}

// FailureStageFor returns the stage to record on a failed result
// when a run breaks down during the given loading step.
func FailureStageFor(step Stage) Stage {
	if step == StageArtifactDownload {
		return StageArtifactFetch
	}
	return step
}

// PhaseFor returns the terminal phase matching an outcome.
func PhaseFor(outcome Outcome) Phase {
	switch outcome {
	case OutcomeVerified:
		return PhaseVerified
	case OutcomeMismatch:
		return PhaseMismatch
	default:
		return PhaseFailed
	}
}
