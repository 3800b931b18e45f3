package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gtixt/integrity-beacon/fixity"
)

// Pointer is the small metadata document (usually latest.json)
// that declares where the current snapshot artifact lives and
// what its sha256 digest should be.
type Pointer struct {
	// Object is the path of the artifact relative to the storage
	// root. For example, "v1/2026-02-14.json".
	Object string `json:"object"`

	// Sha256 is the hex digest of the artifact's exact bytes, as
	// declared by the publisher. It may be upper or lower case.
	Sha256 string `json:"sha256"`

	// CreatedAt is the publication time of the artifact in ISO-8601
	// format. Informational only.
	CreatedAt string `json:"created_at,omitempty"`

	// Count is the number of records in the artifact. Informational
	// only.
	Count int `json:"count"`

	// Source is "primary" or "fallback", depending on which pointer
	// source supplied this document. Set by the resolver.
	Source string `json:"source,omitempty"`

	// SourceURL is the URL the pointer was read from.
	SourceURL string `json:"source_url,omitempty"`
}

// PointerFromJSON parses a pointer document. Unknown fields are
// ignored. The body must be a JSON object; anything else is an error.
func PointerFromJSON(data []byte) (*Pointer, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("pointer body is not a JSON object")
	}
	pointer := &Pointer{}
	err := json.Unmarshal(data, pointer)
	if err != nil {
		return nil, fmt.Errorf("pointer body does not parse: %w", err)
	}
	return pointer, nil
}

// WithSource returns a copy of the pointer stamped with the source
// that supplied it.
func (p Pointer) WithSource(source, sourceURL string) *Pointer {
	p.Source = source
	p.SourceURL = sourceURL
	return &p
}

// IsComplete returns true if the pointer names both an object and
// a digest. Incomplete pointers cannot be verified.
func (p *Pointer) IsComplete() bool {
	return p != nil && strings.TrimSpace(p.Object) != "" && strings.TrimSpace(p.Sha256) != ""
}

// MissingFields returns the names of the required fields that are
// empty.
func (p *Pointer) MissingFields() []string {
	missing := make([]string, 0)
	if p == nil || strings.TrimSpace(p.Object) == "" {
		missing = append(missing, "object")
	}
	if p == nil || strings.TrimSpace(p.Sha256) == "" {
		missing = append(missing, "sha256")
	}
	return missing
}

// ExpectedDigest returns the declared digest, trimmed and lowercased.
func (p *Pointer) ExpectedDigest() string {
	return fixity.Normalize(p.Sha256)
}

// PublishedAt parses CreatedAt.
func (p *Pointer) PublishedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, p.CreatedAt)
}

// ShortDigest abbreviates the declared digest for display.
func (p *Pointer) ShortDigest(n int) string {
	return fixity.ShortDigest(p.ExpectedDigest(), n)
}

func (p *Pointer) ToJSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
