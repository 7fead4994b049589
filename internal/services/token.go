package services

import (
	"crypto/rand"
	"encoding/hex"
)

const accessTokenBytes = 32

// NewAccessToken returns a hex-encoded 256-bit random token.
func NewAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
