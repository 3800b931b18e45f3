package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gtixt/integrity-beacon/models/common"
	"github.com/gtixt/integrity-beacon/util/cli"
	"github.com/gtixt/integrity-beacon/workers"
)

func main() {
	help := false
	runOnce := false
	flag.BoolVar(&help, "help", false, "Print help message")
	flag.BoolVar(&runOnce, "run-once", false, "Run once and exit (cron mode instead of server mode)")
	flag.Parse()

	if help {
		printHelp()
		os.Exit(0)
	}

	queue := workers.NewQueueVerify(common.NewContext())

	if runOnce {
		if _, err := queue.RunOnce(); err != nil {
			os.Exit(1)
		}
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		queue.RunAsService(ctx)
	}
}

func printHelp() {
	message := `
beacon_queue queues integrity verification requests for beacon_worker.

When running as a service (i.e. without --run-once), this relies on the
config setting VERIFY_INTERVAL to determine how long to wait between
requests.

You can also run this as a one-off job with the --run-once flag. It will
queue one request and then exit.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
