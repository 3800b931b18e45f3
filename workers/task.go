package workers

import (
	"strings"
	"sync"
	"time"

	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/nsqio/go-nsq"
)

// Task encapsulates everything that a worker will need to
// pass from one channel to the next during procesing.
type Task struct {
	// NSQMessage is the NSQ message the worker is processing.
	NSQMessage *nsq.Message

	// RequestID identifies the verification request. It's the body
	// of the NSQ message, or the message ID if the body is empty.
	RequestID string

	// Result is the outcome of the verification, once it has run.
	Result *snapshot.Result

	// Err is set if the verifier was busy or the run was cancelled.
	Err error

	nsqStopChannel chan bool
	stopOnce       sync.Once

	// For testing
	nsqStartCalled bool

	// For testing
	tickerStopped bool
	mutex         sync.Mutex
}

// NewTask returns a task for message.
func NewTask(message *nsq.Message) *Task {
	requestID := strings.TrimSpace(string(message.Body))
	if requestID == "" {
		requestID = string(message.ID[:])
	}
	return &Task{
		NSQMessage: message,
		RequestID:  requestID,
	}
}

// MessageID returns the ID nsqd assigned to the message. A message
// redelivered after a timeout keeps its ID.
func (item *Task) MessageID() string {
	return string(item.NSQMessage.ID[:])
}

// NSQStart creates a timer that touches the NSQ message every
// interval while the verification is in process. Downloading and
// hashing a large artifact can take longer than nsqd's message
// timeout.
func (item *Task) NSQStart(interval time.Duration) {
	item.NSQMessage.DisableAutoResponse()
	ticker := time.NewTicker(interval)
	stopChannel := make(chan bool)
	go func() {
		for {
			select {
			case <-ticker.C:
				item.NSQMessage.Touch()
			case <-stopChannel:
				ticker.Stop()
				item.mutex.Lock()
				item.tickerStopped = true
				item.mutex.Unlock()
				return
			}
		}
	}()
	item.nsqStartCalled = true
	item.nsqStopChannel = stopChannel
}

// NSQRequeue requeues the message with the specified duration
// and stops sending touches.
func (item *Task) NSQRequeue(delay time.Duration) {
	item.stopTouching()
	item.NSQMessage.Requeue(delay)
}

// NSQFinishes the message and stops sending touches.
func (item *Task) NSQFinish() {
	item.stopTouching()
	item.NSQMessage.Finish()
}

func (item *Task) stopTouching() {
	if item.nsqStopChannel == nil {
		return
	}
	item.stopOnce.Do(func() {
		item.nsqStopChannel <- true
	})
}

// StartCalled returns true if NSQStart() has been called on this object.
// This method exist for testing purposes.
func (item *Task) StartCalled() bool {
	return item.nsqStartCalled
}

// TickerStopped returns true if either NSQFinish() or NSQRequeue()
// has been called. This method exist for testing purposes.
func (item *Task) TickerStopped() bool {
	item.mutex.Lock()
	defer item.mutex.Unlock()
	return item.tickerStopped
}
