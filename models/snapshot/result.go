package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/fixity"
)

// Result describes the outcome of one verification run. Use the
// NewVerified, NewMismatch and NewFailed constructors. Fields are
// exported so results can be serialized; callers should treat them
// as read-only.
type Result struct {
	// RunID uniquely identifies the verification run.
	RunID string `json:"run_id"`

	// Outcome is verified, mismatch or failed.
	Outcome constants.Outcome `json:"outcome"`

	// ComputedDigestHex is the lowercase digest of the downloaded
	// artifact. Set for verified and mismatch results.
	ComputedDigestHex string `json:"computed_digest_hex,omitempty"`

	// ExpectedDigestHex is the pointer's declared digest, lowercased.
	// Set for mismatch results.
	ExpectedDigestHex string `json:"expected_digest_hex,omitempty"`

	// ArtifactSizeBytes is the size of the verified artifact.
	ArtifactSizeBytes int64 `json:"artifact_size_bytes,omitempty"`

	// Stage is the step at which a failed run broke down.
	Stage constants.Stage `json:"stage,omitempty"`

	// Message describes a failure.
	Message string `json:"message,omitempty"`

	// Pointer is the pointer this run worked from, if one was
	// resolved.
	Pointer *Pointer `json:"pointer,omitempty"`

	// ArtifactURL is the URL the artifact was read from, if known.
	ArtifactURL string `json:"artifact_url,omitempty"`

	Host        string    `json:"host"`
	Pid         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// RunInfo holds the bookkeeping fields every result carries.
type RunInfo struct {
	RunID       string
	StartedAt   time.Time
	Pointer     *Pointer
	ArtifactURL string
}

func newResult(info RunInfo, outcome constants.Outcome) *Result {
	hostname, _ := os.Hostname()
	return &Result{
		RunID:       info.RunID,
		Outcome:     outcome,
		Pointer:     info.Pointer,
		ArtifactURL: info.ArtifactURL,
		Host:        hostname,
		Pid:         os.Getpid(),
		StartedAt:   info.StartedAt,
		CompletedAt: time.Now().UTC(),
	}
}

// NewVerified returns a result saying the artifact matched its
// published digest.
func NewVerified(info RunInfo, computedDigest string, sizeBytes int64) *Result {
	result := newResult(info, constants.OutcomeVerified)
	result.ComputedDigestHex = fixity.Normalize(computedDigest)
	result.ArtifactSizeBytes = sizeBytes
	return result
}

// NewMismatch returns a result saying the check completed and the
// artifact did not match its published digest.
func NewMismatch(info RunInfo, expectedDigest, computedDigest string) *Result {
	result := newResult(info, constants.OutcomeMismatch)
	result.ExpectedDigestHex = fixity.Normalize(expectedDigest)
	result.ComputedDigestHex = fixity.Normalize(computedDigest)
	return result
}

// NewFailed returns a result saying the check could not be
// completed.
func NewFailed(info RunInfo, stage constants.Stage, message string) *Result {
	result := newResult(info, constants.OutcomeFailed)
	result.Stage = stage
	result.Message = message
	return result
}

func (r *Result) IsVerified() bool {
	return r.Outcome == constants.OutcomeVerified
}

func (r *Result) IsMismatch() bool {
	return r.Outcome == constants.OutcomeMismatch
}

func (r *Result) IsFailed() bool {
	return r.Outcome == constants.OutcomeFailed
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Summary returns a one-line, human-readable description of the
// result.
func (r *Result) Summary() string {
	switch r.Outcome {
	case constants.OutcomeVerified:
		return fmt.Sprintf("Integrity verified: sha256 %s, %d bytes", r.ComputedDigestHex, r.ArtifactSizeBytes)
	case constants.OutcomeMismatch:
		return fmt.Sprintf("Integrity MISMATCH: expected %s, got %s", r.ExpectedDigestHex, r.ComputedDigestHex)
	default:
		return fmt.Sprintf("Verification failed at %s: %s", r.Stage, r.Message)
	}
}

// State returns the terminal state matching this result.
func (r *Result) State() State {
	return State{Phase: constants.PhaseFor(r.Outcome)}
}

func (r *Result) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
