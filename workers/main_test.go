package workers_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/models/common"
	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/gtixt/integrity-beacon/network"
	"github.com/gtixt/integrity-beacon/util/logger"
	"github.com/nsqio/go-nsq"
)

var testLogger = logger.DiscardLogger("workers_test")

func testContext() *common.Context {
	return &common.Context{
		Config: &common.Config{
			ConfigName:        "test",
			FetchTimeout:      time.Second,
			PrimaryPointerURL: "http://localhost:9002/latest.json",
			StorageRoot:       "http://localhost:9002/gpti-snapshots",
			VerifyInterval:    time.Hour,
		},
		Logger:    testLogger,
		NSQClient: network.NewNSQClient(""),
	}
}

// messageDelegate records how a message was answered.
type messageDelegate struct {
	mutex    sync.Mutex
	finished int
	requeued int
	touched  int
	delay    time.Duration
}

func (d *messageDelegate) OnFinish(m *nsq.Message) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.finished++
}

func (d *messageDelegate) OnRequeue(m *nsq.Message, delay time.Duration, backoff bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.requeued++
	d.delay = delay
}

func (d *messageDelegate) OnTouch(m *nsq.Message) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.touched++
}

func (d *messageDelegate) Counts() (finished, requeued int) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.finished, d.requeued
}

func (d *messageDelegate) Delay() time.Duration {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.delay
}

func (d *messageDelegate) Touches() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.touched
}

var messageCounter atomic.Uint64

// newMessage returns a message with a unique 16-character ID.
func newMessage(body string, attempts uint16) (*nsq.Message, *messageDelegate) {
	var id nsq.MessageID
	copy(id[:], fmt.Sprintf("%016x", messageCounter.Add(1)))
	return newMessageWithID(id, body, attempts)
}

func newMessageWithID(id nsq.MessageID, body string, attempts uint16) (*nsq.Message, *messageDelegate) {
	message := nsq.NewMessage(id, []byte(body))
	message.Attempts = attempts
	delegate := &messageDelegate{}
	message.Delegate = delegate
	return message, delegate
}

// fakeVerifier returns a canned result. If block is set, Verify
// waits for ctx and returns the cancellation error the real
// verifier would.
type fakeVerifier struct {
	result  *snapshot.Result
	err     error
	block   bool
	entered chan struct{}
	calls   int
	mutex   sync.Mutex
}

func (v *fakeVerifier) Verify(ctx context.Context) (*snapshot.Result, error) {
	v.mutex.Lock()
	v.calls++
	v.mutex.Unlock()
	if v.block {
		if v.entered != nil {
			v.entered <- struct{}{}
		}
		<-ctx.Done()
		return nil, v.err
	}
	return v.result, v.err
}

// fakeNSQ records everything published to it.
type fakeNSQ struct {
	mutex    sync.Mutex
	err      error
	topics   []string
	messages []string
}

func (n *fakeNSQ) EnqueueString(topic string, data string) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.err != nil {
		return n.err
	}
	n.topics = append(n.topics, topic)
	n.messages = append(n.messages, data)
	return nil
}

func (n *fakeNSQ) Published() ([]string, []string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]string{}, n.topics...), append([]string{}, n.messages...)
}

func runInfo() snapshot.RunInfo {
	pointer := snapshot.Pointer{Object: "v1/2026-02-14.json", Sha256: constants.EmptySha256}
	return snapshot.RunInfo{
		RunID:       "run-0001",
		StartedAt:   time.Now().UTC(),
		Pointer:     pointer.WithSource(constants.SourcePrimary, "http://localhost:9002/latest.json"),
		ArtifactURL: "http://localhost:9002/gpti-snapshots/v1/2026-02-14.json",
	}
}
