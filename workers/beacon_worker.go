package workers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gtixt/integrity-beacon/beacon"
	"github.com/gtixt/integrity-beacon/models/common"
	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/gtixt/integrity-beacon/network"
	"github.com/gtixt/integrity-beacon/util"
	"github.com/nsqio/go-nsq"
)

// Verifier runs one integrity verification.
type Verifier interface {
	Verify(ctx context.Context) (*snapshot.Result, error)
}

// BeaconWorker reads verification requests from NSQ, runs them
// one at a time, and publishes an alert for every run that ends in
// a mismatch or failure.
type BeaconWorker struct {
	// Context contains the config, logger and NSQ connection.
	Context *common.Context

	// Settings describes which topics to read and write.
	Settings *Settings

	// Verifier does the actual work.
	Verifier Verifier

	// Alerts publishes mismatch and failure results. This is
	// usually Context.NSQClient.
	Alerts network.NSQClientInterface

	// ProcessChannel holds requests waiting to be verified.
	ProcessChannel chan *Task

	// KillChannel handles SIGTERM and SIGINT.
	KillChannel chan os.Signal

	// NSQConsumer implements HandleMessage to receive messages from NSQ.
	NSQConsumer *nsq.Consumer

	// ItemsInProcess holds the IDs of NSQ messages this worker is
	// holding. nsqd redelivers a message whose timeout expires, and
	// we don't want to queue the same request twice.
	ItemsInProcess *util.RingList

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBeaconWorker creates a worker. Call Start to begin consuming.
func NewBeaconWorker(beaconContext *common.Context, verifier Verifier, settings *Settings) *BeaconWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &BeaconWorker{
		Context:        beaconContext,
		Settings:       settings,
		Verifier:       verifier,
		Alerts:         beaconContext.NSQClient,
		ProcessChannel: make(chan *Task, settings.ChannelBufferSize),
		KillChannel:    make(chan os.Signal, 1),
		ItemsInProcess: util.NewRingList(settings.ChannelBufferSize + 1),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Start spins up the processing go routine and registers with
// nsqlookupd. As soon as this returns, the worker is handling
// messages.
func (w *BeaconWorker) Start() error {
	w.Context.Logger.Info("Beacon worker started with the following settings:")
	w.Context.Logger.Info(w.Settings.ToJSON())
	w.Context.Logger.Info("Config settings (omitting sensitive credentials):")
	w.Context.Logger.Info(w.Context.Config.ToJSON())

	signal.Notify(w.KillChannel, syscall.SIGINT, syscall.SIGTERM)
	go w.WatchSignals()
	go w.ProcessItems()
	return w.RegisterAsNsqConsumer()
}

// WatchSignals stops the worker on SIGTERM or SIGINT. A run in
// flight is cancelled and its request requeued for another worker.
func (w *BeaconWorker) WatchSignals() {
	select {
	case sig := <-w.KillChannel:
		w.Context.Logger.Warningf("Received signal %s; shutting down", sig)
		w.Stop()
	case <-w.ctx.Done():
	}
}

// Done is closed once the worker has stopped and requeued any
// requests it was holding.
func (w *BeaconWorker) Done() <-chan struct{} {
	return w.done
}

// RegisterAsNsqConsumer registers this worker as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel.
func (w *BeaconWorker) RegisterAsNsqConsumer() error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", w.Settings.ChannelBufferSize)
	consumer, err := nsq.NewConsumer(w.Settings.NSQTopic, w.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	w.NSQConsumer = consumer
	w.NSQConsumer.AddHandler(w)
	err = w.NSQConsumer.ConnectToNSQLookupd(w.Context.Config.NsqLookupd)
	if err != nil {
		return fmt.Errorf("Cannot connect to nsqlookupd at %s: %w", w.Context.Config.NsqLookupd, err)
	}
	w.Context.Logger.Info("Registered as NSQ consumer")
	return nil
}

// HandleMessage queues a verification request. The message stays
// in flight, and is touched periodically, until ProcessItems is
// done with it.
func (w *BeaconWorker) HandleMessage(message *nsq.Message) error {
	task := NewTask(message)
	if w.ItemsInProcess.Contains(task.MessageID()) {
		w.Context.Logger.Infof("Request %s is already in process here; skipping redelivery", task.RequestID)
		return nil
	}
	w.Context.Logger.Infof("Received verification request %s (attempt %d)", task.RequestID, message.Attempts)
	w.ItemsInProcess.Add(task.MessageID())
	task.NSQStart(w.Settings.TouchInterval)
	w.ProcessChannel <- task
	return nil
}

// ProcessItems verifies queued requests until the worker is stopped.
func (w *BeaconWorker) ProcessItems() {
	defer close(w.done)
	for {
		if w.ctx.Err() != nil {
			w.drain()
			return
		}
		select {
		case <-w.ctx.Done():
		case task := <-w.ProcessChannel:
			w.ProcessTask(task)
		}
	}
}

// ProcessTask runs one verification and finishes or requeues the
// NSQ message.
func (w *BeaconWorker) ProcessTask(task *Task) {
	defer w.ItemsInProcess.Del(task.MessageID())
	task.Result, task.Err = w.Verifier.Verify(w.ctx)
	switch {
	case errors.Is(task.Err, beacon.ErrCancelled):
		// Shutting down. Let another worker take it.
		w.Context.Logger.Warningf("Request %s cancelled; requeueing", task.RequestID)
		task.NSQRequeue(0)
	case errors.Is(task.Err, beacon.ErrBusy):
		w.handleBusy(task)
	case task.Err != nil:
		w.Context.Logger.Errorf("Request %s: %v", task.RequestID, task.Err)
		task.NSQRequeue(w.Settings.RequeueTimeout)
	default:
		w.Context.Logger.Infof("Request %s: %s", task.RequestID, task.Result.Summary())
		if !task.Result.IsVerified() {
			w.PublishAlert(task.Result)
		}
		task.NSQFinish()
	}
}

func (w *BeaconWorker) handleBusy(task *Task) {
	if int(task.NSQMessage.Attempts) >= w.Settings.MaxAttempts {
		w.Context.Logger.Warningf("Request %s: verifier still busy after %d attempts; dropping request",
			task.RequestID, task.NSQMessage.Attempts)
		task.NSQFinish()
		return
	}
	w.Context.Logger.Infof("Request %s: verifier busy; requeueing in %s", task.RequestID, w.Settings.RequeueTimeout)
	task.NSQRequeue(w.Settings.RequeueTimeout)
}

// PublishAlert sends result to the alert topic. Errors are logged,
// not returned. The result is already in the log.
func (w *BeaconWorker) PublishAlert(result *snapshot.Result) {
	if w.Settings.AlertTopic == "" || w.Alerts == nil {
		return
	}
	data, err := result.ToJSON()
	if err != nil {
		w.Context.Logger.Errorf("Cannot serialize result of run %s for alert: %v", result.RunID, err)
		return
	}
	err = w.Alerts.EnqueueString(w.Settings.AlertTopic, data)
	if err != nil {
		w.Context.Logger.Errorf("Cannot publish %s alert for run %s to %s: %v",
			result.Outcome, result.RunID, w.Settings.AlertTopic, err)
		return
	}
	w.Context.Logger.Infof("Published %s alert for run %s to %s", result.Outcome, result.RunID, w.Settings.AlertTopic)
}

// Stop cancels any run in flight and stops consuming. Requests still
// waiting in ProcessChannel are requeued.
func (w *BeaconWorker) Stop() {
	if w.NSQConsumer != nil {
		w.NSQConsumer.Stop()
	}
	w.cancel()
}

func (w *BeaconWorker) drain() {
	for {
		select {
		case task := <-w.ProcessChannel:
			w.ItemsInProcess.Del(task.MessageID())
			task.NSQRequeue(0)
		default:
			return
		}
	}
}
