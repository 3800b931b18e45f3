package common

import (
	"fmt"
	"net/http"

	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/metrics"
	"github.com/gtixt/integrity-beacon/network"
	"github.com/gtixt/integrity-beacon/util/logger"
	"github.com/minio/minio-go/v7"
	"github.com/op/go-logging"
)

// Context holds the config, logger and clients shared by everything
// in one beacon process.
//
// RedisClient is nil unless REDIS_URL is set, and S3Client is nil
// unless STORAGE_ROOT is an s3:// URL.
type Context struct {
	Config      *Config
	Logger      *logging.Logger
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
	NSQClient   *network.NSQClient
	RedisClient *network.RedisClient
	S3Client    *minio.Client
}

// NewContext loads the config named by BEACON_ENV and builds a context
// that logs to a file in the config's LogDir. It panics if any client
// can't be created.
func NewContext() *Context {
	config := NewConfig()
	_logger := getLogger(config)
	context, err := NewContextFromConfig(config, _logger)
	if err != nil {
		panic(err)
	}
	return context
}

// NewContextFromConfig builds a context around an existing config and
// logger.
func NewContextFromConfig(config *Config, log *logging.Logger) (*Context, error) {
	s3Client, err := getS3Client(config)
	if err != nil {
		return nil, err
	}
	return &Context{
		Config:      config,
		Logger:      log,
		HTTPClient:  network.NewHTTPClient(),
		Metrics:     metrics.New(),
		NSQClient:   getNsqClient(config),
		RedisClient: getRedisClient(config),
		S3Client:    s3Client,
	}, nil
}

func getLogger(config *Config) *logging.Logger {
	log, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return log
}

func getNsqClient(config *Config) *network.NSQClient {
	return network.NewNSQClient(config.NsqURL)
}

func getRedisClient(config *Config) *network.RedisClient {
	if config.RedisURL == "" {
		return nil
	}
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getS3Client(config *Config) (*minio.Client, error) {
	if !config.UsesS3() {
		return nil, nil
	}
	client, err := network.NewMinioClient(config.S3Host, config.S3Key, config.S3Secret, config.S3UseSSL)
	if err != nil {
		return nil, NewError(fmt.Sprintf("Could not initialize S3 client for %s", config.S3Host), err, true)
	}
	return client, nil
}

// PointerClient returns a resolver for the configured pointer URLs.
func (context *Context) PointerClient() *network.PointerClient {
	return network.NewPointerClient(
		context.HTTPClient,
		context.Config.PrimaryPointerURL,
		context.Config.FallbackPointerURLs,
		context.Config.FetchTimeout,
		context.Logger)
}

// ArtifactClient returns an HTTP artifact fetcher for the configured
// storage root. Use S3ArtifactClient when Config.UsesS3 is true.
func (context *Context) ArtifactClient() *network.ArtifactClient {
	return network.NewArtifactClient(
		context.HTTPClient,
		context.Config.StorageRoot,
		context.Config.FetchTimeout,
		context.Config.MaxArtifactBytes,
		context.Logger)
}

// S3ArtifactClient returns an artifact fetcher that reads from the
// configured s3:// storage root.
func (context *Context) S3ArtifactClient() (*network.S3ArtifactClient, error) {
	if context.S3Client == nil {
		return nil, fmt.Errorf("No S3 client configured for storage root %s", context.Config.StorageRoot)
	}
	return network.NewS3ArtifactClient(
		network.NewMinioObjectGetter(context.S3Client),
		context.Config.StorageRoot,
		context.Config.FetchTimeout,
		context.Config.MaxArtifactBytes,
		context.Logger)
}

// RunGuard returns the cross-process run lock, or nil if Redis is
// not configured.
func (context *Context) RunGuard() *network.RedisRunGuard {
	if context.RedisClient == nil {
		return nil
	}
	return network.NewRedisRunGuard(context.RedisClient, runLockKey(context.Config), context.Config.RunLockTTL)
}

func runLockKey(config *Config) string {
	return fmt.Sprintf("%s:%s", constants.RunLockKey, config.ConfigName)
}
