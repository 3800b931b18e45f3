package cli

import (
	"errors"
	"flag"
	"time"

	"github.com/gtixt/integrity-beacon/beacon"
	"github.com/gtixt/integrity-beacon/models/snapshot"
)

type Options struct {
	ChannelBufferSize int
	ConfigDir         string
	ConfigName        string
	MaxAttempts       int
	PrintHelp         bool
	RequeueTimeout    time.Duration
}

var opts = Options{}
var defaultAttempts = 3
var defaultBufSize = 4
var defaultTimeout = 30 * time.Second

// Exit codes for one-shot verification.
const (
	ExitVerified  = 0
	ExitMismatch  = 1
	ExitFailed    = 2
	ExitNotRun    = 3
	ExitBadConfig = 4
)

var EnvMessage = `If you don't set -config-dir and -config-name on the command line,
this requires the following environtment vars:

BEACON_CONFIG_DIR - Path to the directory containing the .env settings file.

BEACON_ENV - Name of the configuration to load. For example:
    test - Loads .env.test from BEACON_CONFIG_DIR
    prod - Loads .env.prod from BEACON_CONFIG_DIR

Any setting in the .env file can be overridden by an environment
variable with the BEACON_ prefix. For example, BEACON_FETCH_TIMEOUT=5s.
`

func Init() {
	InitFlags(flag.CommandLine, &opts)
}

// InitFlags registers the shared options on fs.
func InitFlags(fs *flag.FlagSet, o *Options) {
	fs.IntVar(&o.ChannelBufferSize, "bufsize", defaultBufSize, "Channel buffer size and NSQ max in flight for workers")
	fs.StringVar(&o.ConfigDir, "config-dir", "", "Directory containing .env config files (overrides BEACON_CONFIG_DIR)")
	fs.StringVar(&o.ConfigName, "config-name", "", "Name of the config to load, e.g. test loads .env.test (overrides BEACON_ENV)")
	fs.IntVar(&o.MaxAttempts, "max-attempts", defaultAttempts, "Maximum number of times a worker should retry a request bounced by a run in flight")
	fs.BoolVar(&o.PrintHelp, "help", false, "Print help message")
	fs.DurationVar(&o.RequeueTimeout, "requeue-timeout", defaultTimeout, "Requeue timeout for requests bounced by a run in flight. Format examples: 500ms, 12s, 10m, 3m30s, 3h")
}

func ParseOpts() Options {
	flag.Parse()
	return opts
}

func PrintDefaults() {
	flag.PrintDefaults()
}

// HasConfigOverride returns true if both -config-dir and -config-name
// were given.
func (o Options) HasConfigOverride() bool {
	return o.ConfigDir != "" && o.ConfigName != ""
}

// ExitCode maps the outcome of a one-shot verification to the
// process exit code. Scripts can tell a mismatch (1) from a check
// that could not complete (2).
func ExitCode(result *snapshot.Result, err error) int {
	if err != nil || result == nil {
		if errors.Is(err, beacon.ErrBusy) || errors.Is(err, beacon.ErrCancelled) {
			return ExitNotRun
		}
		return ExitFailed
	}
	switch {
	case result.IsVerified():
		return ExitVerified
	case result.IsMismatch():
		return ExitMismatch
	default:
		return ExitFailed
	}
}
