package models

import (
	"crypto/rand"
	"encoding/base64"
)

// NewVerificationToken creates a cryptographically secure DNS challenge value.
// Owners publish it as a TXT record (or CNAME target) under their domain; the
// probe compares the published value against this token verbatim.
// crypto/rand.Read is guaranteed not to fail.
func NewVerificationToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return "linkforge-verify-" + base64.RawURLEncoding.EncodeToString(buf)
}
