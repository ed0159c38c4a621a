package session

import (
	"crypto/rand"
	"encoding/base64"
)

// newRefreshValue returns nBytes of CSPRNG output, base64url without padding.
func newRefreshValue(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
