package snapshot

// Artifact is the raw content of one snapshot download. It belongs
// to a single verification run and is never modified after the
// fetcher returns it.
type Artifact struct {
	URL       string
	Data      []byte
	SizeBytes int64
}

// NewArtifact wraps downloaded bytes.
func NewArtifact(url string, data []byte) *Artifact {
	return &Artifact{
		URL:       url,
		Data:      data,
		SizeBytes: int64(len(data)),
	}
}
