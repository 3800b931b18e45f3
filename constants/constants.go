package constants

import "time"

const (
	AppName                = "integrity-beacon"
	DefaultFetchTimeout    = 20 * time.Second
	DefaultMaxArtifactSize = int64(256 * 1024 * 1024)
	DefaultPointerURL      = "http://localhost:9002/gpti-snapshots/universe_v0.1_public/_public/latest.json"
	DefaultRunLockTTL      = 2 * time.Minute
	DefaultStorageRoot     = "http://localhost:9002/gpti-snapshots"
	DefaultVerifyInterval  = 1 * time.Hour
	EmptySha256            = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	RunLockKey             = "integrity-beacon:run-lock"
	SourceFallback         = "fallback"
	SourcePrimary          = "primary"
	TopicAlert             = "beacon_alert"
	TopicVerify            = "beacon_verify"
)

// ConfigSettings lists the keys recognized in .env config files.
var ConfigSettings = []string{
	"FALLBACK_POINTER_URLS",
	"FETCH_TIMEOUT",
	"LOG_DIR",
	"LOG_LEVEL",
	"MAX_ARTIFACT_BYTES",
	"METRICS_ADDR",
	"NSQ_LOOKUPD",
	"NSQ_URL",
	"PRIMARY_POINTER_URL",
	"REDIS_DEFAULT_DB",
	"REDIS_PASSWORD",
	"REDIS_URL",
	"RUN_LOCK_TTL",
	"S3_HOST",
	"S3_KEY",
	"S3_SECRET",
	"S3_USE_SSL",
	"STORAGE_ROOT",
	"VERIFY_INTERVAL",
}
