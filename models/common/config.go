package common

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/network"
	"github.com/gtixt/integrity-beacon/util"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override settings
// in the .env file. For example, BEACON_FETCH_TIMEOUT=5s overrides
// FETCH_TIMEOUT.
const EnvPrefix = "BEACON"

type Config struct {
	ConfigName          string
	FallbackPointerURLs []string
	FetchTimeout        time.Duration
	LogDir              string
	LogLevel            logging.Level
	MaxArtifactBytes    int64
	MetricsAddr         string
	NsqLookupd          string
	NsqURL              string
	PrimaryPointerURL   string
	RedisDefaultDB      int
	RedisPassword       string
	RedisURL            string
	RunLockTTL          time.Duration
	S3Host              string
	S3Key               string
	S3Secret            string
	S3UseSSL            bool
	StorageRoot         string
	VerifyInterval      time.Duration
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// Returns a new config based on ENV vars BEACON_CONFIG_DIR and
// BEACON_ENV. This panics if the config can't be loaded, because
// no service can start without one.
func NewConfig() *Config {
	configDir, envName := getEnvVars()
	config, err := LoadConfig(configDir, envName)
	if err != nil {
		panic(err)
	}
	err = config.makeDirs()
	if err != nil {
		panic(err)
	}
	return config
}

// LoadConfig loads .env.<envName> from configDir, applies defaults
// and environment overrides, and validates the result.
func LoadConfig(configDir, envName string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)
	err := v.ReadInConfig()
	if err != nil {
		return nil, NewError(fmt.Sprintf("Cannot read config .env.%s in %s", envName, configDir), err, true)
	}

	levelName := strings.ToUpper(strings.TrimSpace(v.GetString("LOG_LEVEL")))
	level, ok := logLevels[levelName]
	if !ok {
		return nil, NewError(fmt.Sprintf("Unknown LOG_LEVEL '%s'", levelName), nil, true)
	}

	config := &Config{
		ConfigName:          envName,
		FallbackPointerURLs: util.SplitList(v.GetString("FALLBACK_POINTER_URLS")),
		FetchTimeout:        v.GetDuration("FETCH_TIMEOUT"),
		LogDir:              v.GetString("LOG_DIR"),
		LogLevel:            level,
		MaxArtifactBytes:    v.GetInt64("MAX_ARTIFACT_BYTES"),
		MetricsAddr:         v.GetString("METRICS_ADDR"),
		NsqLookupd:          v.GetString("NSQ_LOOKUPD"),
		NsqURL:              v.GetString("NSQ_URL"),
		PrimaryPointerURL:   v.GetString("PRIMARY_POINTER_URL"),
		RedisDefaultDB:      v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisURL:            v.GetString("REDIS_URL"),
		RunLockTTL:          v.GetDuration("RUN_LOCK_TTL"),
		S3Host:              v.GetString("S3_HOST"),
		S3Key:               v.GetString("S3_KEY"),
		S3Secret:            v.GetString("S3_SECRET"),
		S3UseSSL:            v.GetBool("S3_USE_SSL"),
		StorageRoot:         v.GetString("STORAGE_ROOT"),
		VerifyInterval:      v.GetDuration("VERIFY_INTERVAL"),
	}
	err = config.expandPaths()
	if err != nil {
		return nil, err
	}
	err = config.Validate()
	if err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("FALLBACK_POINTER_URLS", "")
	v.SetDefault("FETCH_TIMEOUT", constants.DefaultFetchTimeout.String())
	v.SetDefault("LOG_DIR", "~/tmp/logs")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("MAX_ARTIFACT_BYTES", constants.DefaultMaxArtifactSize)
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("NSQ_LOOKUPD", "")
	v.SetDefault("NSQ_URL", "")
	v.SetDefault("PRIMARY_POINTER_URL", constants.DefaultPointerURL)
	v.SetDefault("REDIS_DEFAULT_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RUN_LOCK_TTL", constants.DefaultRunLockTTL.String())
	v.SetDefault("S3_HOST", "")
	v.SetDefault("S3_KEY", "")
	v.SetDefault("S3_SECRET", "")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("STORAGE_ROOT", constants.DefaultStorageRoot)
	v.SetDefault("VERIFY_INTERVAL", constants.DefaultVerifyInterval.String())
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("BEACON_CONFIG_DIR")
	envName := getRequiredEnvVar("BEACON_ENV")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Validate returns an error describing the first setting that would
// keep the beacon from running.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PrimaryPointerURL) == "" {
		return NewError("PRIMARY_POINTER_URL is required", nil, true)
	}
	if strings.TrimSpace(c.StorageRoot) == "" {
		return NewError("STORAGE_ROOT is required", nil, true)
	}
	if c.FetchTimeout <= 0 {
		return NewError(fmt.Sprintf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout), nil, true)
	}
	if c.MaxArtifactBytes <= 0 {
		return NewError(fmt.Sprintf("MAX_ARTIFACT_BYTES must be positive, got %d", c.MaxArtifactBytes), nil, true)
	}
	if c.RedisURL != "" && c.RunLockTTL <= 0 {
		return NewError("RUN_LOCK_TTL must be positive when REDIS_URL is set", nil, true)
	}
	if network.IsS3Root(c.StorageRoot) {
		if _, _, err := network.ParseS3Root(c.StorageRoot); err != nil {
			return NewError("STORAGE_ROOT is not a valid s3:// URL", err, true)
		}
		if c.S3Host == "" {
			return NewError("S3_HOST is required for an s3:// STORAGE_ROOT", nil, true)
		}
	}
	return nil
}

// UsesS3 returns true if artifacts are read from an S3 bucket rather
// than over HTTP.
func (c *Config) UsesS3() bool {
	return network.IsS3Root(c.StorageRoot)
}

// ToJSON returns the config as JSON with secrets redacted. Services
// log this at startup.
func (c *Config) ToJSON() string {
	copied := *c
	copied.RedisPassword = redact(c.RedisPassword)
	copied.S3Secret = redact(c.S3Secret)
	data, _ := json.MarshalIndent(copied, "", "  ")
	return string(data)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() error {
	dir, err := util.ExpandTilde(c.LogDir)
	if err != nil {
		return NewError("Cannot expand LOG_DIR", err, true)
	}
	c.LogDir = dir
	return nil
}

func (c *Config) makeDirs() error {
	dirs := []string{
		c.LogDir,
	}
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}
	return nil
}
