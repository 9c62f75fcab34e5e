package payment

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
)

// SignatureHeader is the HTTP header carrying the provider's signature.
const SignatureHeader = "X-Payment-Signature"

// Sign computes the hex HMAC-SHA256 of a webhook body under the shared
// secret.  Exposed so tests and local tooling can produce valid events.
func Sign(secret string, body []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a presented signature against the raw body in
// constant time.  Verification happens before any database row is read,
// so no lock or transaction spans the check.
func VerifySignature(secret string, body []byte, presented string) bool {
    if presented == "" {
        return false
    }
    expected := Sign(secret, body)
    return hmac.Equal([]byte(expected), []byte(presented))
}
