package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateKey collapses the parts into a fixed-length deterministic key.
// Update deduplication keys embed chat and message identifiers (and for
// callbacks the payload), so hashing keeps them bounded no matter what the
// client sent.
func GenerateKey(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v\x1f", part)
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
