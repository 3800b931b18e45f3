package beacon_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gtixt/integrity-beacon/beacon"
	"github.com/gtixt/integrity-beacon/constants"
	"github.com/gtixt/integrity-beacon/models/common"
	"github.com/gtixt/integrity-beacon/network"
	"github.com/gtixt/integrity-beacon/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	latestPath   = "/gpti-snapshots/universe_v0.1_public/_public/latest.json"
	proxyPath    = "/api/snapshot/latest.json"
	artifactPath = "/gpti-snapshots/v1/2026-02-14.json"
	objectName   = "v1/2026-02-14.json"
)

// httpVerifier wires real pointer and artifact clients to server.
func httpVerifier(t *testing.T, server *testutil.SnapshotServer, timeout time.Duration, opts ...beacon.Option) *beacon.Verifier {
	httpClient := network.NewHTTPClient()
	resolver := network.NewPointerClient(httpClient, server.URL(latestPath), []string{server.URL(proxyPath)}, timeout, testLogger)
	fetcher := network.NewArtifactClient(httpClient, server.URL("/gpti-snapshots/"), timeout, 1024*1024, testLogger)
	return newVerifier(t, resolver, fetcher, opts...)
}

func TestEndToEndSnapshotScenario(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	data := testutil.ArtifactBytes()
	digest := testutil.DigestOf(data)
	server.SetString(latestPath, testutil.PointerJSON(objectName, strings.ToUpper(digest)))
	server.SetBytes(artifactPath, data)

	v := httpVerifier(t, server, time.Second)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	require.True(t, result.IsVerified(), result.Summary())
	assert.Equal(t, digest, result.ComputedDigestHex)
	assert.EqualValues(t, len(data), result.ArtifactSizeBytes)
	assert.Equal(t, server.URL(artifactPath), result.ArtifactURL)
	assert.Equal(t, constants.SourcePrimary, result.Pointer.Source)
	assert.Equal(t, 230, result.Pointer.Count)
	assert.Equal(t, "2026-02-14T04:03:16Z", result.Pointer.CreatedAt)
	assert.Equal(t, 0, server.Hits(proxyPath))
}

func TestEndToEndFallback(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	data := testutil.ArtifactBytes()
	server.SetStatus(latestPath, http.StatusBadGateway)
	server.SetString(proxyPath, testutil.PointerJSON(objectName, testutil.DigestOf(data)))
	server.SetBytes(artifactPath, data)

	v := httpVerifier(t, server, time.Second)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.NotEqual(t, constants.StagePointerFetch, result.Stage)
	assert.True(t, result.IsVerified(), result.Summary())
	assert.Equal(t, constants.SourceFallback, result.Pointer.Source)
	assert.Equal(t, server.URL(proxyPath), result.Pointer.SourceURL)
}

func TestEndToEndMismatch(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	data := testutil.ArtifactBytes()
	server.SetString(latestPath, testutil.PointerJSON(objectName, testutil.DigestOf(testutil.FlipByte(data))))
	server.SetBytes(artifactPath, data)

	v := httpVerifier(t, server, time.Second)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsMismatch())
	assert.Equal(t, testutil.DigestOf(data), result.ComputedDigestHex)
}

func TestEndToEndIncompletePointer(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	server.SetString(latestPath, testutil.PointerJSON(objectName, ""))
	server.SetBytes(artifactPath, testutil.ArtifactBytes())

	v := httpVerifier(t, server, time.Second)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsFailed())
	assert.Equal(t, constants.StagePointerFetch, result.Stage)
	assert.Equal(t, 0, server.Hits(artifactPath))
	// A parseable but incomplete pointer does not trigger failover.
	assert.Equal(t, 0, server.Hits(proxyPath))
}

func TestEndToEndBothPointerSourcesFail(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	server.SetStatus(latestPath, http.StatusServiceUnavailable)
	server.SetString(proxyPath, "<html>gateway error</html>")

	v := httpVerifier(t, server, time.Second)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsFailed())
	assert.Equal(t, constants.StagePointerFetch, result.Stage)
	assert.Contains(t, result.Message, "JSON object")
}

func TestEndToEndArtifactNotFound(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	server.SetString(latestPath, testutil.PointerJSON(objectName, constants.EmptySha256))

	v := httpVerifier(t, server, time.Second)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsFailed())
	assert.Equal(t, constants.StageArtifactFetch, result.Stage)
	assert.Contains(t, result.Message, "404")
}

func TestEndToEndArtifactTimeout(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	data := testutil.ArtifactBytes()
	server.SetString(latestPath, testutil.PointerJSON(objectName, testutil.DigestOf(data)))
	server.SetBytes(artifactPath, data)
	server.SetDelay(artifactPath, 2*time.Second)

	v := httpVerifier(t, server, 150*time.Millisecond)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsFailed())
	assert.Equal(t, constants.StageArtifactFetch, result.Stage)
	assert.Contains(t, result.Message, "timed out")
	assert.Equal(t, constants.PhaseFailed, v.State().Phase)
}

func TestEndToEndPointerTimeout(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	pointer := testutil.PointerJSON(objectName, constants.EmptySha256)
	server.SetString(latestPath, pointer)
	server.SetDelay(latestPath, 2*time.Second)
	server.SetString(proxyPath, pointer)
	server.SetDelay(proxyPath, 2*time.Second)

	v := httpVerifier(t, server, 150*time.Millisecond)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsFailed())
	assert.Equal(t, constants.StagePointerFetch, result.Stage)
	assert.Contains(t, result.Message, "timed out")
}

func TestEndToEndCancelled(t *testing.T) {
	server := testutil.NewSnapshotServer()
	defer server.Close()
	data := testutil.ArtifactBytes()
	server.SetString(latestPath, testutil.PointerJSON(objectName, testutil.DigestOf(data)))
	server.SetBytes(artifactPath, data)
	server.SetDelay(artifactPath, 5*time.Second)

	v := httpVerifier(t, server, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	result, err := v.Verify(ctx)
	assert.Nil(t, result)
	assert.Equal(t, beacon.ErrCancelled, err)
	assert.Equal(t, constants.PhaseAbandoned, v.State().Phase)
}

func TestEndToEndRedisRunGuard(t *testing.T) {
	redisServer := testutil.NewRedisServer()
	defer redisServer.Close()
	server := testutil.NewSnapshotServer()
	defer server.Close()
	data := testutil.ArtifactBytes()
	server.SetString(latestPath, testutil.PointerJSON(objectName, testutil.DigestOf(data)))
	server.SetBytes(artifactPath, data)

	redisClient := network.NewRedisClient(redisServer.Addr(), "", 0)
	guard := network.NewRedisRunGuard(redisClient, constants.RunLockKey, time.Minute)
	v := httpVerifier(t, server, time.Second, beacon.WithRunGuard(guard))

	// Another process holds the lock.
	acquired, err := redisClient.LockAcquire(constants.RunLockKey, "worker-on-other-host", time.Minute)
	require.Nil(t, err)
	require.True(t, acquired)

	result, err := v.Verify(context.Background())
	assert.Nil(t, result)
	assert.Equal(t, beacon.ErrBusy, err)
	assert.Equal(t, 0, server.Hits(latestPath))

	released, err := redisClient.LockRelease(constants.RunLockKey, "worker-on-other-host")
	require.Nil(t, err)
	require.True(t, released)

	result, err = v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsVerified())

	// Released after the run.
	owner, err := redisClient.LockOwner(constants.RunLockKey)
	require.Nil(t, err)
	assert.Equal(t, "", owner)
}

func TestNewFromContext(t *testing.T) {
	redisServer := testutil.NewRedisServer()
	defer redisServer.Close()
	server := testutil.NewSnapshotServer()
	defer server.Close()
	data := testutil.ArtifactBytes()
	server.SetString(latestPath, testutil.PointerJSON(objectName, testutil.DigestOf(data)))
	server.SetBytes(artifactPath, data)

	dir := t.TempDir()
	settings := strings.Join([]string{
		"PRIMARY_POINTER_URL=" + server.URL(latestPath),
		"FALLBACK_POINTER_URLS=" + server.URL(proxyPath),
		"STORAGE_ROOT=" + server.URL("/gpti-snapshots"),
		"FETCH_TIMEOUT=2s",
		"REDIS_URL=" + redisServer.Addr(),
		"LOG_DIR=" + filepath.Join(dir, "logs"),
	}, "\n")
	require.Nil(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte(settings), 0644))
	config, err := common.LoadConfig(dir, "test")
	require.Nil(t, err)
	ctx, err := common.NewContextFromConfig(config, testLogger)
	require.Nil(t, err)

	v, err := beacon.NewFromContext(ctx)
	require.Nil(t, err)
	result, err := v.Verify(context.Background())
	require.Nil(t, err)
	assert.True(t, result.IsVerified(), result.Summary())
}

func TestNewFromContextS3(t *testing.T) {
	dir := t.TempDir()
	settings := strings.Join([]string{
		"STORAGE_ROOT=s3://gpti-snapshots/universe_v0.1_public",
		"S3_HOST=localhost:9002",
		"S3_USE_SSL=false",
		"LOG_DIR=" + filepath.Join(dir, "logs"),
	}, "\n")
	require.Nil(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte(settings), 0644))
	config, err := common.LoadConfig(dir, "test")
	require.Nil(t, err)
	ctx, err := common.NewContextFromConfig(config, testLogger)
	require.Nil(t, err)

	v, err := beacon.NewFromContext(ctx)
	require.Nil(t, err)
	assert.NotNil(t, v)
}
