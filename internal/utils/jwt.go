package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for one-time tokens
    "encoding/hex"  // hex encoding for random tokens and digests
    "time"          // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  The same string is stored on
// the user row as the canonical session token, so the session guard can
// compare the presented credential against exactly one live session.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// OneTimeToken is a random credential for email verification or password
// reset.  The Raw value is handed to the user; only the SHA-256 hash is
// stored, so a leaked database row cannot be redeemed.
type OneTimeToken struct {
    Raw  string    // raw token returned to the user
    Hash string    // SHA-256 hex digest stored in the database
    Exp  time.Time // UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes the
// signing secret, the user ID, the user's role, and a TTL in minutes.
// The JWT carries standard claims: subject (sub), role, expiration (exp)
// and issued at (iat).  Note the exp claim is a ceiling, not the session
// lifetime: the session guard ends sessions much earlier on inactivity.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewOneTimeToken returns a cryptographically secure random token and the
// hash to persist.  The ttl controls how long the token can be redeemed.
func NewOneTimeToken(ttl time.Duration) (OneTimeToken, error) {
    raw, err := randomHex(32) // 32 bytes -> 64 hex chars
    if err != nil {
        return OneTimeToken{}, err
    }
    return OneTimeToken{
        Raw:  raw,
        Hash: HashTokenRaw(raw),
        Exp:  time.Now().UTC().Add(ttl),
    }, nil
}

// HashTokenRaw returns the SHA-256 hash of a raw one-time token as a hex
// string.  Handlers hash the presented token and match on the digest.
func HashTokenRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
