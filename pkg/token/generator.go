package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

// Prefix marks generated access keys.
const Prefix = "ak_"

// DefaultLength is the default key length in random bytes.
const DefaultLength = 18

// ErrLength is returned for a non-positive length.
var ErrLength = errors.New("token: length must be positive")

// Generate generates a cryptographically secure access key.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength generates a key from length random bytes.
func GenerateWithLength(length int) (string, error) {
	if length <= 0 {
		return "", ErrLength
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(bytes), nil
}

// IsGenerated reports whether key has the shape of a generated key.
func IsGenerated(key string) bool {
	body, ok := strings.CutPrefix(key, Prefix)
	if !ok || body == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil
}
