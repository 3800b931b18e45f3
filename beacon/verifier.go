package beacon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/fixity"
	"github.com/gtixt/integrity-beacon/metrics"
	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/op/go-logging"
)

// ErrBusy is returned by Verify when another run is in flight.
var ErrBusy = errors.New("verification already in progress")

// ErrCancelled is returned by Verify when the caller's context is
// cancelled before the run reaches an outcome.
var ErrCancelled = errors.New("verification cancelled")

// PointerResolver fetches the current pointer document.
type PointerResolver interface {
	Resolve(ctx context.Context) (*snapshot.Pointer, error)
}

// ArtifactFetcher downloads the artifact a pointer names.
type ArtifactFetcher interface {
	URLFor(objectPath string) string
	Fetch(ctx context.Context, objectPath string) (*snapshot.Artifact, error)
}

// RunGuard keeps runs in different processes from overlapping.
// Acquire returns false if another run holds the guard.
type RunGuard interface {
	Acquire(runID string) (bool, error)
	Release(runID string) error
}

// DigestFunc returns the lowercase hex digest of data.
type DigestFunc func(data []byte) string

// Verifier drives one verification run at a time through pointer
// fetch, artifact download and digest comparison, publishing each
// state transition to its observers.
type Verifier struct {
	resolver PointerResolver
	fetcher  ArtifactFetcher
	guard    RunGuard
	metrics  *metrics.Metrics
	digest   DigestFunc
	logger   *logging.Logger

	running atomic.Bool

	mutex     sync.Mutex
	state     snapshot.State
	observers []observer
	nextID    int
}

type observer struct {
	id int
	fn func(snapshot.State)
}

type Option func(*Verifier)

// WithRunGuard adds a cross-process guard.
func WithRunGuard(guard RunGuard) Option {
	return func(v *Verifier) {
		v.guard = guard
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// WithDigestFunc replaces the sha256 digest engine.
func WithDigestFunc(digest DigestFunc) Option {
	return func(v *Verifier) {
		v.digest = digest
	}
}

// New returns a Verifier in the idle state.
func New(resolver PointerResolver, fetcher ArtifactFetcher, logger *logging.Logger, opts ...Option) (*Verifier, error) {
	if resolver == nil {
		return nil, fmt.Errorf("pointer resolver is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("artifact fetcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	v := &Verifier{
		resolver: resolver,
		fetcher:  fetcher,
		digest:   fixity.Sha256Hex,
		logger:   logger,
		state:    snapshot.Idle,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.digest == nil {
		v.digest = fixity.Sha256Hex
	}
	return v, nil
}

// State returns the current state of the state machine.
func (v *Verifier) State() snapshot.State {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.state
}

// Subscribe registers fn to be called on every state transition.
// Callbacks run on the goroutine that called Verify, so they should
// return quickly. Call the returned function to unsubscribe.
func (v *Verifier) Subscribe(fn func(snapshot.State)) func() {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	id := v.nextID
	v.nextID++
	v.observers = append(v.observers, observer{id: id, fn: fn})
	return func() {
		v.mutex.Lock()
		defer v.mutex.Unlock()
		for i, o := range v.observers {
			if o.id == id {
				v.observers = append(v.observers[:i:i], v.observers[i+1:]...)
				return
			}
		}
	}
}

// IsRunning returns true while a run is in flight.
func (v *Verifier) IsRunning() bool {
	return v.running.Load()
}

// Verify runs one complete verification and returns its result.
//
// Stage failures come back as a Failed result, not an error. The
// only errors are ErrBusy, when a run is already in flight here or
// in another process holding the run guard, and ErrCancelled, when
// ctx is cancelled mid-run. A cancelled run leaves the state
// machine in the abandoned phase.
func (v *Verifier) Verify(ctx context.Context) (*snapshot.Result, error) {
	if !v.running.CompareAndSwap(false, true) {
		v.metrics.IncrementBusy()
		return nil, ErrBusy
	}
	defer v.running.Store(false)

	runID := uuid.NewString()
	if v.guard != nil {
		acquired, err := v.guard.Acquire(runID)
		if err != nil {
			// Redis is down. Verify without the guard.
			v.logger.Warningf("Run %s: run guard unavailable, continuing without it: %v", runID, err)
		} else if !acquired {
			v.logger.Infof("Run %s: another process is verifying; skipping", runID)
			v.metrics.IncrementBusy()
			return nil, ErrBusy
		} else {
			defer v.releaseGuard(runID)
		}
	}

	start := time.Now()
	info := &snapshot.RunInfo{
		RunID:     runID,
		StartedAt: start.UTC(),
	}
	v.setState(snapshot.Idle)
	result := v.run(ctx, info)
	if result == nil {
		v.logger.Warningf("Run %s abandoned: %v", runID, ctx.Err())
		v.metrics.IncrementAbandoned()
		v.setState(snapshot.Abandoned)
		return nil, ErrCancelled
	}

	v.record(result, time.Since(start))
	v.setState(result.State())
	return result, nil
}

// run walks the loading steps. It returns nil if ctx was cancelled.
func (v *Verifier) run(ctx context.Context, info *snapshot.RunInfo) *snapshot.Result {
	v.setState(snapshot.Loading(constants.StagePointerFetch))
	v.logger.Infof("Run %s: resolving pointer", info.RunID)
	pointer, err := v.resolver.Resolve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return v.failed(info, constants.StagePointerFetch, err.Error())
	}
	info.Pointer = pointer
	v.metrics.IncrementPointerSource(pointer.Source)
	if !pointer.IsComplete() {
		return v.failed(info, constants.StagePointerFetch,
			fmt.Sprintf("pointer incomplete: missing %s", strings.Join(pointer.MissingFields(), ", ")))
	}

	v.setState(snapshot.Loading(constants.StageArtifactDownload))
	info.ArtifactURL = v.fetcher.URLFor(pointer.Object)
	v.logger.Infof("Run %s: downloading %s (expected sha256 %s)", info.RunID, info.ArtifactURL, pointer.ShortDigest(6))
	artifact, err := v.fetcher.Fetch(ctx, pointer.Object)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return v.failed(info, constants.StageArtifactFetch, err.Error())
	}
	info.ArtifactURL = artifact.URL
	v.metrics.SetArtifactSize(artifact.SizeBytes)

	v.setState(snapshot.Loading(constants.StageDigestCompute))
	computed, err := v.computeDigest(ctx, artifact.Data)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return v.failed(info, constants.StageDigestCompute, err.Error())
	}

	expected := pointer.ExpectedDigest()
	if fixity.Equal(computed, expected) {
		return snapshot.NewVerified(*info, computed, artifact.SizeBytes)
	}
	return snapshot.NewMismatch(*info, expected, computed)
}

type digestResult struct {
	digest string
	err    error
}

// computeDigest hashes data on its own goroutine so a cancelled
// caller doesn't wait for a large artifact to finish hashing. A
// panic in the digest engine becomes an error.
func (v *Verifier) computeDigest(ctx context.Context, data []byte) (string, error) {
	done := make(chan digestResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- digestResult{err: fmt.Errorf("digest computation failed: %v", r)}
			}
		}()
		digest := fixity.Normalize(v.digest(data))
		if digest == "" {
			done <- digestResult{err: fmt.Errorf("digest computation returned an empty digest")}
			return
		}
		done <- digestResult{digest: digest}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-done:
		return result.digest, result.err
	}
}

func (v *Verifier) failed(info *snapshot.RunInfo, stage constants.Stage, message string) *snapshot.Result {
	return snapshot.NewFailed(*info, stage, message)
}

func (v *Verifier) record(result *snapshot.Result, elapsed time.Duration) {
	v.metrics.IncrementOutcome(string(result.Outcome))
	v.metrics.ObserveRunDuration(elapsed)
	switch result.Outcome {
	case constants.OutcomeVerified:
		v.logger.Infof("Run %s: %s (%s) in %s", result.RunID, result.Summary(),
			humanize.Bytes(uint64(result.ArtifactSizeBytes)), elapsed)
	case constants.OutcomeMismatch:
		v.logger.Errorf("Run %s: %s (artifact %s)", result.RunID, result.Summary(), result.ArtifactURL)
	default:
		v.metrics.IncrementFailure(string(result.Stage))
		v.logger.Warningf("Run %s: %s", result.RunID, result.Summary())
	}
}

func (v *Verifier) releaseGuard(runID string) {
	if err := v.guard.Release(runID); err != nil {
		v.logger.Warningf("Run %s: could not release run guard: %v", runID, err)
	}
}

// setState records the new state and notifies observers outside the
// lock, so an observer may call State without deadlocking.
func (v *Verifier) setState(state snapshot.State) {
	v.mutex.Lock()
	v.state = state
	observers := v.observers
	v.mutex.Unlock()
	for _, o := range observers {
		o.fn(state)
	}
}
