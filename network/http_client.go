package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gtixt/integrity-beacon/util/logger"
	"github.com/op/go-logging"
)

// MaxPointerBytes caps the size of a pointer document. Pointers are
// a few hundred bytes; anything near this size is not a pointer.
const MaxPointerBytes = int64(1024 * 1024)

// NewHTTPClient returns an http.Client for pointer and artifact
// fetches. Deadlines are applied per request through the context,
// so the client itself has no overall timeout.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DisableKeepAlives:   false,
		ForceAttemptHTTP2:   true,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// getNoCache issues a GET with caching disabled and returns the full
// response body. The request is bounded by timeout. If the caller's
// ctx is cancelled, the caller's error is returned unwrapped so it
// can be told apart from a timeout. Bodies over maxBytes are
// rejected with ErrTooLarge.
func getNoCache(ctx context.Context, client *http.Client, url string, timeout time.Duration, maxBytes int64, log *logging.Logger) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewHttpError(fmt.Sprintf("GET %s: %s", url, err.Error()), err, http.MethodGet, url, 0)
	}
	request.Header.Set("Cache-Control", "no-cache, no-store")
	request.Header.Set("Pragma", "no-cache")

	reqTime := time.Now()
	response, err := client.Do(request)
	if err != nil {
		return nil, fetchError(ctx, fetchCtx, url, timeout, err)
	}
	defer response.Body.Close()
	log.Debugf("GET %s returned %d in %s", url, response.StatusCode, time.Since(reqTime))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		// Drain a little of the body so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, NewHttpError(
			fmt.Sprintf("GET %s: HTTP %d", url, response.StatusCode),
			nil, http.MethodGet, url, response.StatusCode)
	}

	reader := logger.NewProgressLogger(response.Body, log, "GET "+url, response.ContentLength)
	data, err := readLimited(reader, maxBytes)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, NewHttpError(fmt.Sprintf("GET %s: %s", url, err.Error()), err, http.MethodGet, url, response.StatusCode)
		}
		return nil, fetchError(ctx, fetchCtx, url, timeout, err)
	}
	return data, nil
}

// readLimited reads all of r, failing with ErrTooLarge if r holds
// more than maxBytes.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// fetchError classifies a transport or read error. Caller
// cancellation is passed through as-is.
func fetchError(parent, fetchCtx context.Context, url string, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return NewHttpError(
			fmt.Sprintf("GET %s timed out after %s", url, timeout),
			ErrTimeout, http.MethodGet, url, 0)
	}
	return NewHttpError(fmt.Sprintf("GET %s: %s", url, err.Error()), err, http.MethodGet, url, 0)
}
