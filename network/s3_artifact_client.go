package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/gtixt/integrity-beacon/util/logger"
	"github.com/op/go-logging"
)

// S3Scheme prefixes storage roots that live in an S3-compatible
// bucket rather than behind a public HTTP endpoint.
const S3Scheme = "s3://"

// IsS3Root returns true if storageRoot looks like s3://bucket/prefix.
func IsS3Root(storageRoot string) bool {
	return strings.HasPrefix(strings.ToLower(storageRoot), S3Scheme)
}

// ParseS3Root splits s3://bucket/some/prefix into its bucket and
// key prefix. The prefix may be empty.
func ParseS3Root(storageRoot string) (bucket, prefix string, err error) {
	if !IsS3Root(storageRoot) {
		return "", "", fmt.Errorf("Storage root %s is not an s3:// URL", storageRoot)
	}
	parsed, err := url.Parse(storageRoot)
	if err != nil {
		return "", "", fmt.Errorf("Cannot parse storage root %s: %w", storageRoot, err)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("Storage root %s has no bucket name", storageRoot)
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

// S3ArtifactClient downloads snapshot artifacts from an S3 bucket.
// Like ArtifactClient, it holds the whole artifact in memory and
// enforces MaxBytes.
type S3ArtifactClient struct {
	Bucket   string
	Prefix   string
	Timeout  time.Duration
	MaxBytes int64
	getter   S3ObjectGetter
	logger   *logging.Logger
}

// NewS3ArtifactClient creates a client for artifacts under the
// s3://bucket/prefix storageRoot.
func NewS3ArtifactClient(getter S3ObjectGetter, storageRoot string, timeout time.Duration, maxBytes int64, logger *logging.Logger) (*S3ArtifactClient, error) {
	bucket, prefix, err := ParseS3Root(storageRoot)
	if err != nil {
		return nil, err
	}
	return &S3ArtifactClient{
		Bucket:   bucket,
		Prefix:   prefix,
		Timeout:  timeout,
		MaxBytes: maxBytes,
		getter:   getter,
		logger:   logger,
	}, nil
}

// KeyFor returns the S3 key of the object at objectPath.
func (client *S3ArtifactClient) KeyFor(objectPath string) string {
	return strings.TrimLeft(JoinObjectURL(client.Prefix, objectPath), "/")
}

// URLFor returns the s3:// URL of the object at objectPath.
func (client *S3ArtifactClient) URLFor(objectPath string) string {
	return JoinObjectURL(S3Scheme+client.Bucket, client.KeyFor(objectPath))
}

// Fetch downloads the artifact at objectPath.
func (client *S3ArtifactClient) Fetch(ctx context.Context, objectPath string) (*snapshot.Artifact, error) {
	if strings.Trim(objectPath, "/ ") == "" {
		return nil, fmt.Errorf("Artifact object path is empty")
	}
	url := client.URLFor(objectPath)
	fetchCtx, cancel := context.WithTimeout(ctx, client.Timeout)
	defer cancel()

	start := time.Now()
	body, size, err := client.getter.GetObject(fetchCtx, client.Bucket, client.KeyFor(objectPath))
	if err != nil {
		if ctx.Err() != nil || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, fetchError(ctx, fetchCtx, url, client.Timeout, err)
		}
		return nil, err
	}
	defer body.Close()
	if size > client.MaxBytes {
		return nil, NewHttpError(
			fmt.Sprintf("GET %s: %s (%s > %d bytes)", url, ErrTooLarge.Error(), humanize.Bytes(uint64(size)), client.MaxBytes),
			ErrTooLarge, http.MethodGet, url, http.StatusOK)
	}

	reader := logger.NewProgressLogger(body, client.logger, "GET "+url, size)
	data, err := readLimited(reader, client.MaxBytes)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, NewHttpError(fmt.Sprintf("GET %s: %s", url, err.Error()), err, http.MethodGet, url, http.StatusOK)
		}
		return nil, fetchError(ctx, fetchCtx, url, client.Timeout, err)
	}
	client.logger.Infof("Downloaded %s (%s) in %s", url, humanize.Bytes(uint64(len(data))), time.Since(start))
	return snapshot.NewArtifact(url, data), nil
}
