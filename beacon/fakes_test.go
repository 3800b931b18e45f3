package beacon_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/gtixt/integrity-beacon/network"
)

// fakeResolver returns a fixed pointer or error. If gate is set,
// Resolve signals entered and then waits for gate or ctx.
type fakeResolver struct {
	pointer *snapshot.Pointer
	err     error
	gate    chan struct{}
	entered chan struct{}
	calls   int32
}

func (r *fakeResolver) Resolve(ctx context.Context) (*snapshot.Pointer, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.gate != nil {
		if r.entered != nil {
			r.entered <- struct{}{}
		}
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.pointer, r.err
}

func (r *fakeResolver) Calls() int {
	return int(atomic.LoadInt32(&r.calls))
}

// fakeFetcher serves data for any object path, or returns err. If
// block is true, Fetch waits for ctx to be cancelled.
type fakeFetcher struct {
	data    []byte
	err     error
	block   bool
	entered chan struct{}
	calls   int32
	lastObj string
	mutex   sync.Mutex
}

func (f *fakeFetcher) URLFor(objectPath string) string {
	return network.JoinObjectURL("https://storage.example.com/gpti-snapshots", objectPath)
}

func (f *fakeFetcher) Fetch(ctx context.Context, objectPath string) (*snapshot.Artifact, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mutex.Lock()
	f.lastObj = objectPath
	f.mutex.Unlock()
	if f.block {
		if f.entered != nil {
			f.entered <- struct{}{}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return snapshot.NewArtifact(f.URLFor(objectPath), f.data), nil
}

func (f *fakeFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func (f *fakeFetcher) LastObject() string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.lastObj
}

// fakeGuard grants the guard unless held or err is set.
type fakeGuard struct {
	held     bool
	err      error
	acquired []string
	released []string
}

func (g *fakeGuard) Acquire(runID string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.held {
		return false, nil
	}
	g.held = true
	g.acquired = append(g.acquired, runID)
	return true, nil
}

func (g *fakeGuard) Release(runID string) error {
	g.held = false
	g.released = append(g.released, runID)
	return nil
}

// stateRecorder collects every state a verifier publishes.
type stateRecorder struct {
	mutex  sync.Mutex
	states []snapshot.State
}

func (r *stateRecorder) Record(state snapshot.State) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) Strings() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	names := make([]string, len(r.states))
	for i, s := range r.states {
		names[i] = s.String()
	}
	return names
}

func loading(step constants.Stage) string {
	return snapshot.Loading(step).String()
}

func pointerFor(object, digest string) *snapshot.Pointer {
	p := snapshot.Pointer{
		Object:    object,
		Sha256:    digest,
		CreatedAt: "2026-02-14T04:03:16Z",
		Count:     230,
	}
	return p.WithSource(constants.SourcePrimary, "https://data.example.com/latest.json")
}
