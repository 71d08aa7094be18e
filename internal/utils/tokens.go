package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// NewAccessKey returns a random hex secret for private request links.
func NewAccessKey(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 20
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
