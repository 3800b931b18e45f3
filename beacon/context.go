package beacon

import (
	"github.com/gtixt/integrity-beacon/models/common"
)

// NewFromContext builds a Verifier from a process context. Artifacts
// come from S3 when the storage root is an s3:// URL, and the Redis
// run guard is used when Redis is configured.
func NewFromContext(context *common.Context) (*Verifier, error) {
	var fetcher ArtifactFetcher = context.ArtifactClient()
	if context.Config.UsesS3() {
		s3Fetcher, err := context.S3ArtifactClient()
		if err != nil {
			return nil, err
		}
		fetcher = s3Fetcher
	}
	opts := []Option{WithMetrics(context.Metrics)}
	if guard := context.RunGuard(); guard != nil {
		opts = append(opts, WithRunGuard(guard))
	}
	return New(context.PointerClient(), fetcher, context.Logger, opts...)
}
