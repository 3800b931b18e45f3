package fixity

import (
	"fmt"
	"io"
	"strings"

	sha256 "github.com/minio/sha256-simd"
)

// Sha256Hex returns the lowercase hex sha256 digest of data.
// Output is identical to crypto/sha256, so digests published by
// any standard implementation verify against it.
func Sha256Hex(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// Sha256HexFromReader streams r through the hash function and
// returns the lowercase hex digest along with the number of bytes
// read. Use this instead of Sha256Hex when the content should not
// be held in memory.
func Sha256HexFromReader(r io.Reader) (digest string, size int64, err error) {
	sha256Hash := sha256.New()
	size, err = io.Copy(sha256Hash, r)
	if err != nil {
		return "", size, fmt.Errorf("Error streaming data through hash function: %w", err)
	}
	return fmt.Sprintf("%x", sha256Hash.Sum(nil)), size, nil
}

// Normalize trims whitespace and lowercases a hex digest. Publishers
// may emit either case.
func Normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// Equal returns true if both digests are the same after
// normalization. Empty digests never match.
func Equal(a, b string) bool {
	a = Normalize(a)
	return a != "" && a == Normalize(b)
}

// LooksLikeSha256 returns true if digest is 64 hex characters
// in either case.
func LooksLikeSha256(digest string) bool {
	digest = Normalize(digest)
	if len(digest) != 64 {
		return false
	}
	for _, c := range digest {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ShortDigest abbreviates a digest for log lines and alerts,
// keeping n characters on each end.
func ShortDigest(digest string, n int) string {
	if digest == "" {
		return "-"
	}
	if n <= 0 || len(digest) <= 2*n {
		return digest
	}
	return digest[:n] + "…" + digest[len(digest)-n:]
}
