// Package admintoken derives the stateless bearer token that grants write
// access to the site content.
//
// A token is hex(sha256(password + ":" + secret)). It is deterministic and is
// never stored; anyone holding both the password and the server secret can
// reproduce it. This is a single fast hash, not a password hash.
package admintoken

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Issue returns the token for password under secret.
func Issue(password, secret string) string {
	sum := sha256.Sum256([]byte(password + ":" + secret))
	return hex.EncodeToString(sum[:])
}

// Equal compares two tokens in constant time.
func Equal(candidate, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) == 1
}
