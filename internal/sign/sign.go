// Package sign computes the SHA-512 request digests used by the signed
// transaction protocol. The digest proves payload integrity: the canonical
// JSON body (secret excluded) concatenated with the shared secret, hashed
// and hex encoded.
package sign

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// HeaderName is the HTTP header carrying the digest.
const HeaderName = "Digest"

// Transaction signs a POST /transactions body. The body must already be the
// canonical wire JSON; the secret is appended, never serialized.
func Transaction(body []byte, secret string) string {
	h := sha512.New()
	h.Write(body)
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// BalanceQuery signs a balance lookup. The five parameter values are
// concatenated in this exact order, missing values as empty strings, then
// the secret. Reordering any value produces a different digest, so callers
// must not sort or deduplicate.
func BalanceQuery(casinoSessionID, currency, gameID, softwareID, integratorID, secret string) string {
	h := sha512.New()
	h.Write([]byte(casinoSessionID))
	h.Write([]byte(currency))
	h.Write([]byte(gameID))
	h.Write([]byte(softwareID))
	h.Write([]byte(integratorID))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// DigestHeader formats a digest for the Digest header.
func DigestHeader(hexDigest string) string {
	return fmt.Sprintf("SHA-512=%s", hexDigest)
}

// ParseDigestHeader extracts the hex digest from a Digest header value.
func ParseDigestHeader(value string) (string, bool) {
	const prefix = "SHA-512="
	if len(value) <= len(prefix) || value[:len(prefix)] != prefix {
		return "", false
	}
	return value[len(prefix):], true
}
