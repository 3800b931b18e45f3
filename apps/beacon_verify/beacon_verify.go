package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gtixt/integrity-beacon/beacon"
	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/models/common"
	"github.com/gtixt/integrity-beacon/util/cli"
	"github.com/gtixt/integrity-beacon/util/logger"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	config, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(cli.ExitBadConfig)
	}

	// Log to stderr so the result on stdout can be piped.
	log := logger.StderrLogger(constants.AppName, config.LogLevel)
	beaconContext, err := common.NewContextFromConfig(config, log)
	if err != nil {
		log.Critical(err.Error())
		os.Exit(cli.ExitBadConfig)
	}
	verifier, err := beacon.NewFromContext(beaconContext)
	if err != nil {
		log.Critical(err.Error())
		os.Exit(cli.ExitBadConfig)
	}

	// Control-C abandons the run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := verifier.Verify(ctx)
	if err != nil {
		log.Error(err.Error())
		os.Exit(cli.ExitCode(result, err))
	}
	data, err := result.ToJSON()
	if err != nil {
		log.Errorf("Cannot serialize result: %v", err)
	} else {
		fmt.Println(data)
	}
	fmt.Fprintln(os.Stderr, result.Summary())
	os.Exit(cli.ExitCode(result, nil))
}

func loadConfig(opts cli.Options) (*common.Config, error) {
	if opts.HasConfigOverride() {
		return common.LoadConfig(opts.ConfigDir, opts.ConfigName)
	}
	configDir := os.Getenv("BEACON_CONFIG_DIR")
	configName := os.Getenv("BEACON_ENV")
	if configDir == "" || configName == "" {
		return nil, fmt.Errorf("Set -config-dir and -config-name, or BEACON_CONFIG_DIR and BEACON_ENV")
	}
	return common.LoadConfig(configDir, configName)
}

func printHelp() {
	message := `
beacon_verify runs one integrity check of the published snapshot and exits.

It reads the pointer document (latest.json) from the primary pointer URL,
falling back to the configured fallback URLs, downloads the artifact the
pointer names, and compares the artifact's sha256 digest with the one the
pointer declares.

The result is printed to stdout as JSON. Logs go to stderr.

Exit codes:

  0 - verified: the artifact matches its published digest
  1 - mismatch: the check completed and the artifact does NOT match
  2 - failed: the check could not be completed
  3 - not run: another run was in progress, or the run was interrupted
  4 - bad configuration
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
