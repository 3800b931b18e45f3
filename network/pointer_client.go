package network

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/models/snapshot"
	"github.com/op/go-logging"
)

// PointerClient fetches the latest snapshot pointer, failing over
// from the primary source to the fallback sources in order. There
// are no retries beyond that single pass.
type PointerClient struct {
	PrimaryURL   string
	FallbackURLs []string
	Timeout      time.Duration
	httpClient   *http.Client
	logger       *logging.Logger
}

// NewPointerClient creates a new PointerClient. Param timeout bounds
// each individual fetch, not the whole failover chain.
func NewPointerClient(httpClient *http.Client, primaryURL string, fallbackURLs []string, timeout time.Duration, logger *logging.Logger) *PointerClient {
	return &PointerClient{
		PrimaryURL:   primaryURL,
		FallbackURLs: fallbackURLs,
		Timeout:      timeout,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Sources returns the pointer URLs in the order they are tried.
func (client *PointerClient) Sources() []string {
	sources := make([]string, 0, len(client.FallbackURLs)+1)
	if client.PrimaryURL != "" {
		sources = append(sources, client.PrimaryURL)
	}
	return append(sources, client.FallbackURLs...)
}

// Resolve returns the first pointer that can be fetched and parsed.
// The pointer records whether it came from the primary source or a
// fallback. If every source fails, the error carries the last
// underlying error. If ctx is cancelled, ctx.Err() is returned and
// no further sources are tried.
//
// Resolve does not check that the pointer names an object and a
// digest. The caller decides what to do with an incomplete pointer.
func (client *PointerClient) Resolve(ctx context.Context) (*snapshot.Pointer, error) {
	sources := client.Sources()
	if len(sources) == 0 {
		return nil, fmt.Errorf("No pointer sources configured")
	}
	var lastErr error
	for i, url := range sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pointer, err := client.fetch(ctx, url)
		if err == nil {
			source := constants.SourcePrimary
			if url != client.PrimaryURL || i > 0 {
				source = constants.SourceFallback
			}
			client.logger.Infof("Pointer from %s source %s: object=%s sha256=%s",
				source, url, pointer.Object, pointer.ShortDigest(8))
			return pointer.WithSource(source, url), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		client.logger.Warningf("Pointer source %s failed: %v", url, err)
		lastErr = err
	}
	return nil, fmt.Errorf("All %d pointer sources failed. Last error: %w", len(sources), lastErr)
}

func (client *PointerClient) fetch(ctx context.Context, url string) (*snapshot.Pointer, error) {
	data, err := getNoCache(ctx, client.httpClient, url, client.Timeout, MaxPointerBytes, client.logger)
	if err != nil {
		return nil, err
	}
	pointer, err := snapshot.PointerFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return pointer, nil
}
