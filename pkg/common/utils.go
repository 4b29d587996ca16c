package common

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateReferenceID produces a unique transaction reference of the form
// TXN-XXXXXXXXXXXX.
func GenerateReferenceID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "TXN-" + id[:12]
}

// GenerateIdempotencyKey produces a caller-side idempotency token for
// internally originated operations.
func GenerateIdempotencyKey() string {
	return uuid.NewString()
}

// DeriveIdempotencyKey joins stable parts into a deterministic key, so a
// retried flow reproduces the same token.
func DeriveIdempotencyKey(parts ...string) string {
	return strings.Join(parts, ":")
}
