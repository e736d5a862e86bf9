package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// HashAlgo names a content-hashing algorithm used to fingerprint a crawled
// document or asset for change detection and deduplication.
type HashAlgo string

const (
	HashAlgoSHA256 = "sha256"
	HashAlgoBLAKE3 = "blake3"
)

type digestFunc func([]byte) string

var digests = map[HashAlgo]digestFunc{
	HashAlgoSHA256: sha256Digest,
	HashAlgoBLAKE3: blake3Digest,
}

// HashBytes returns a hex-encoded content digest of data under algo. The
// same algo always returns the same digest for the same bytes, which is
// what lets the crawler detect an unchanged page by comparing hashes
// instead of diffing full content.
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	digest, ok := digests[algo]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	return digest(data), nil
}

func sha256Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func blake3Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
