package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"  // secure random number generation
	"encoding/hex" // hex encoding and decoding functions
)

// sessionTokenBytes is the amount of random data behind a session token
// (256 bits, 64 hex characters).
const sessionTokenBytes = 32

// NewSessionToken returns an opaque, cryptographically random session
// token.  The token carries no information about its owner; the server
// maps it to a user through the sessions table.
func NewSessionToken() (string, error) {
	return randomHex(sessionTokenBytes)
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.  If the random number generator
// fails, an error is returned.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
