package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword verifies password against a stored hash. Besides bcrypt it
// accepts the unsalted SHA-256 hex digests and plain-text values written by
// earlier versions; legacy reports that the hash should be replaced.
func CheckPassword(stored, password string) (ok, legacy bool) {
	switch {
	case strings.HasPrefix(stored, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	case isSHA256Hex(stored):
		sum := sha256.Sum256([]byte(password))
		want, _ := hex.DecodeString(stored)
		return subtle.ConstantTimeCompare(sum[:], want) == 1, true
	case stored == "":
		return false, false
	default:
		return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1, true
	}
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
