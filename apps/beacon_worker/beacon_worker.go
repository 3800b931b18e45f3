package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gtixt/integrity-beacon/beacon"
	"github.com/gtixt/integrity-beacon/models/common"
	"github.com/gtixt/integrity-beacon/util"
	"github.com/gtixt/integrity-beacon/util/cli"
	"github.com/gtixt/integrity-beacon/workers"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	// If anything goes wrong, this panics.
	beaconContext := common.NewContext()

	pidFile := filepath.Join(beaconContext.Config.LogDir, "beacon_worker.pid")
	if util.IsRunningInOtherProcess(pidFile) {
		beaconContext.Logger.Errorf("Another beacon_worker is running (pid %d). Exiting.", util.ReadPidFile(pidFile))
		os.Exit(1)
	}
	if err := util.WritePidFile(pidFile); err != nil {
		beaconContext.Logger.Warningf("Cannot write pid file %s: %v", pidFile, err)
	}
	defer util.DeletePidFile(pidFile)

	verifier, err := beacon.NewFromContext(beaconContext)
	if err != nil {
		panic(fmt.Sprintf("Cannot create verifier: %v", err))
	}

	if addr := beaconContext.Config.MetricsAddr; addr != "" {
		go serveMetrics(beaconContext, addr)
	}

	settings := workers.DefaultSettings()
	settings.ChannelBufferSize = opts.ChannelBufferSize
	settings.MaxAttempts = opts.MaxAttempts
	settings.RequeueTimeout = opts.RequeueTimeout

	worker := workers.NewBeaconWorker(beaconContext, verifier, settings)
	err = worker.Start()
	if err != nil {
		panic(fmt.Sprintf("Cannot register NSQ consumer: %v", err))
	}

	// This blocks until we get an interrupt and the worker has
	// requeued whatever it was holding.
	<-worker.Done()
	if worker.NSQConsumer != nil {
		<-worker.NSQConsumer.StopChan
	}
}

func serveMetrics(beaconContext *common.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", beaconContext.Metrics.Handler())
	beaconContext.Logger.Infof("Serving metrics at %s/metrics", addr)
	err := http.ListenAndServe(addr, mux)
	if err != nil {
		beaconContext.Logger.Errorf("Metrics listener stopped: %v", err)
	}
}

func printHelp() {
	message := `
beacon_worker runs as a service to verify the integrity of the published
snapshot. It reads verification requests from the NSQ beacon_verify topic,
runs one verification at a time, and publishes the JSON result of every
mismatch or failed check to the beacon_alert topic.

Requests that arrive while a verification is in progress (in this process,
or in any process sharing the Redis run lock) are requeued, up to
-max-attempts times.

If METRICS_ADDR is set, Prometheus metrics are served at /metrics.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
