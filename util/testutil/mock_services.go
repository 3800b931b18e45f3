package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gtixt/integrity-beacon/fixity"
)

// These helpers mock the pointer sources and artifact storage that
// the verifier reads from over HTTP.

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

type route struct {
	status int
	body   []byte
	delay  time.Duration
}

// SnapshotServer is an httptest server that plays the role of the
// public bucket: it serves pointer documents and artifacts at
// whatever paths a test configures. Unconfigured paths return 404.
type SnapshotServer struct {
	Server  *httptest.Server
	mutex   sync.Mutex
	routes  map[string]route
	hits    map[string]int
	headers map[string]http.Header
}

// NewSnapshotServer starts a new SnapshotServer. Call Close when done.
func NewSnapshotServer() *SnapshotServer {
	s := &SnapshotServer{
		routes:  make(map[string]route),
		hits:    make(map[string]int),
		headers: make(map[string]http.Header),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *SnapshotServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	s.hits[r.URL.Path]++
	s.headers[r.URL.Path] = r.Header.Clone()
	rt, ok := s.routes[r.URL.Path]
	s.mutex.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if rt.delay > 0 {
		select {
		case <-time.After(rt.delay):
		case <-r.Context().Done():
			return
		}
	}
	w.WriteHeader(rt.status)
	w.Write(rt.body)
}

// SetBytes makes path return data with status 200.
func (s *SnapshotServer) SetBytes(path string, data []byte) {
	s.set(path, route{status: http.StatusOK, body: data})
}

// SetString makes path return body with status 200.
func (s *SnapshotServer) SetString(path, body string) {
	s.SetBytes(path, []byte(body))
}

// SetStatus makes path return an error status.
func (s *SnapshotServer) SetStatus(path string, status int) {
	s.set(path, route{status: status, body: []byte(http.StatusText(status))})
}

// SetDelay makes path wait before responding. Use it after SetBytes
// or SetString.
func (s *SnapshotServer) SetDelay(path string, delay time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rt := s.routes[path]
	rt.delay = delay
	s.routes[path] = rt
}

func (s *SnapshotServer) set(path string, rt route) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.routes[path] = rt
}

// URL returns the absolute URL of path on this server.
func (s *SnapshotServer) URL(path string) string {
	return s.Server.URL + path
}

// Hits returns the number of requests made for path.
func (s *SnapshotServer) Hits(path string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.hits[path]
}

// RequestHeaders returns the headers of the last request for path.
func (s *SnapshotServer) RequestHeaders(path string) http.Header {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.headers[path]
}

func (s *SnapshotServer) Close() {
	s.Server.Close()
}

// PointerJSON returns a pointer document for object with the given
// digest. Pass an empty digest to leave the sha256 field out.
func PointerJSON(object, digest string) string {
	fields := []string{fmt.Sprintf(`"object": %q`, object)}
	if digest != "" {
		fields = append(fields, fmt.Sprintf(`"sha256": %q`, digest))
	}
	fields = append(fields, `"created_at": "2026-02-14T04:03:16Z"`, `"count": 230`)
	return "{" + strings.Join(fields, ", ") + "}"
}

// ArtifactBytes returns a small, stable artifact body for tests.
func ArtifactBytes() []byte {
	return []byte(`{"snapshot":"2026-02-14","records":[{"firm":"alpha","score":71.5},{"firm":"beta","score":64.25}]}`)
}

// DigestOf returns the sha256 of data.
func DigestOf(data []byte) string {
	return fixity.Sha256Hex(data)
}

// FlipByte returns a copy of data with the first byte changed.
func FlipByte(data []byte) []byte {
	flipped := make([]byte, len(data))
	copy(flipped, data)
	if len(flipped) > 0 {
		flipped[0] ^= 0x01
	}
	return flipped
}
