package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// Signer signs an outgoing API request with the caller's current credentials.
// The campaign and pricing clients depend on this capability only.
type Signer interface {
	Sign(ctx context.Context, req *http.Request, body []byte) error
}

func payloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
