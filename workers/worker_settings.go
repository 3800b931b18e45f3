package workers

import (
	"encoding/json"
	"time"

	"github.com/gtixt/integrity-beacon/constants"
)

// Settings contains settings for a beacon worker.
type Settings struct {
	// AlertTopic is the NSQ topic that receives the JSON result of
	// every verification that ends in a mismatch or failure. Set
	// this to an empty string to disable alerts.
	AlertTopic string

	// ChannelBufferSize is the size of the buffer for the
	// ProcessChannel. It is also the NSQ max_in_flight setting.
	ChannelBufferSize int

	// MaxAttempts is the maximum number of times the worker should
	// try a verification request that was bounced because another
	// run was in flight. After this many attempts, the request is
	// dropped. A run in flight will report the same pointer anyway.
	MaxAttempts int

	// NSQChannel is the NSQ channel the worker should subscribe
	// to to receive messages.
	NSQChannel string

	// NSQTopic is the NSQ topic the worker should subscribe
	// to to receive messages.
	NSQTopic string

	// RequeueTimeout describes how long of a timeout to set
	// on the NSQ requeue after a request is bounced.
	RequeueTimeout time.Duration

	// TouchInterval is how often the worker touches the NSQ message
	// while a verification is in process, so nsqd doesn't time it
	// out during a large download.
	TouchInterval time.Duration
}

// DefaultSettings returns the settings the beacon_worker app uses
// unless overridden on the command line.
func DefaultSettings() *Settings {
	return &Settings{
		AlertTopic:        constants.TopicAlert,
		ChannelBufferSize: 4,
		MaxAttempts:       3,
		NSQChannel:        constants.TopicVerify + "_worker_chan",
		NSQTopic:          constants.TopicVerify,
		RequeueTimeout:    (30 * time.Second),
		TouchInterval:     (1 * time.Minute),
	}
}

func (settings *Settings) ToJSON() string {
	data, _ := json.Marshal(settings)
	return string(data)
}
