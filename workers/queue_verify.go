package workers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/models/common"
	"github.com/gtixt/integrity-beacon/network"
)

// QueueVerify pushes verification requests into NSQ so beacon
// workers re-check the published snapshot on a schedule.
type QueueVerify struct {
	Context  *common.Context
	NSQ      network.NSQClientInterface
	Topic    string
	Interval time.Duration
}

// NewQueueVerify creates a new queuer.
//
// This relies on these config settings:
//
// NsqURL is the nsqd HTTP endpoint requests are posted to.
//
// VerifyInterval specifies how often RunAsService queues a request.
// In production, this is usually 60 minutes.
func NewQueueVerify(beaconContext *common.Context) *QueueVerify {
	return &QueueVerify{
		Context:  beaconContext,
		NSQ:      beaconContext.NSQClient,
		Topic:    constants.TopicVerify,
		Interval: beaconContext.Config.VerifyInterval,
	}
}

func (q *QueueVerify) logStartup() {
	q.Context.Logger.Info("Starting with config settings:")
	q.Context.Logger.Info(q.Context.Config.ToJSON())
	q.Context.Logger.Infof("Queue interval: %s", q.Interval.String())
}

// RunOnce queues a single request and returns its id.
func (q *QueueVerify) RunOnce() (string, error) {
	q.logStartup()
	return q.run()
}

// RunAsService queues a request every Interval until ctx is
// cancelled.
func (q *QueueVerify) RunAsService(ctx context.Context) {
	q.logStartup()
	ticker := time.NewTicker(q.Interval)
	defer ticker.Stop()
	for {
		q.run()
		select {
		case <-ctx.Done():
			q.Context.Logger.Info("Queue service stopping")
			return
		case <-ticker.C:
		}
	}
}

// run adds one request to the verify topic. The message body is a
// request id that workers log alongside the run id.
func (q *QueueVerify) run() (string, error) {
	hostname, _ := os.Hostname()
	requestID := fmt.Sprintf("%s:%s", hostname, uuid.NewString())
	err := q.NSQ.EnqueueString(q.Topic, requestID)
	if err != nil {
		q.Context.Logger.Errorf("Error sending '%s' to %s: %v", requestID, q.Topic, err)
		return "", err
	}
	q.Context.Logger.Infof("Added '%s' to %s", requestID, q.Topic)
	return requestID, nil
}
