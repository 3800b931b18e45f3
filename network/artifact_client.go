package network

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/op/go-logging"
)

// JoinObjectURL joins a storage root and an object path with exactly
// one slash, no matter how many slashes trail the root or lead the
// object path.
func JoinObjectURL(root, objectPath string) string {
	base := strings.TrimRight(root, "/")
	obj := strings.TrimLeft(objectPath, "/")
	if base == "" {
		return obj
	}
	return base + "/" + obj
}

// ArtifactClient downloads snapshot artifacts over HTTP(S).
//
// The whole artifact is held in memory so it can be hashed and its
// size reported. MaxBytes is the explicit scale limit: larger
// artifacts fail rather than exhaust memory.
type ArtifactClient struct {
	StorageRoot string
	Timeout     time.Duration
	MaxBytes    int64
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewArtifactClient creates a new ArtifactClient for artifacts under
// storageRoot.
func NewArtifactClient(httpClient *http.Client, storageRoot string, timeout time.Duration, maxBytes int64, logger *logging.Logger) *ArtifactClient {
	return &ArtifactClient{
		StorageRoot: storageRoot,
		Timeout:     timeout,
		MaxBytes:    maxBytes,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// URLFor returns the URL of the artifact at objectPath.
func (client *ArtifactClient) URLFor(objectPath string) string {
	return JoinObjectURL(client.StorageRoot, objectPath)
}

// Fetch downloads the artifact at objectPath. Non-success statuses
// come back as an *HttpError whose message includes the status code.
func (client *ArtifactClient) Fetch(ctx context.Context, objectPath string) (*snapshot.Artifact, error) {
	if strings.Trim(objectPath, "/ ") == "" {
		return nil, fmt.Errorf("Artifact object path is empty")
	}
	url := client.URLFor(objectPath)
	start := time.Now()
	data, err := getNoCache(ctx, client.httpClient, url, client.Timeout, client.MaxBytes, client.logger)
	if err != nil {
		return nil, err
	}
	client.logger.Infof("Downloaded %s (%s) in %s", url, humanize.Bytes(uint64(len(data))), time.Since(start))
	return snapshot.NewArtifact(url, data), nil
}
