// Package password derives and verifies credential hashes using scrypt.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters. Changing these invalidates stored hashes, so they
// are fixed rather than configurable.
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
	keyLen  = 32
	saltLen = 16

	separator = "."
)

// Hash derives a key from the password with a fresh random salt and returns
// it encoded as hex(key) + "." + hex(salt).
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return "", fmt.Errorf("password: derive key: %w", err)
	}
	return hex.EncodeToString(key) + separator + hex.EncodeToString(salt), nil
}

// Verify re-derives the key with the stored salt and compares it to the
// stored key in constant time. Any malformed stored value fails closed.
func Verify(password, encoded string) bool {
	keyHex, saltHex, ok := strings.Cut(encoded, separator)
	if !ok {
		return false
	}
	storedKey, err := hex.DecodeString(keyHex)
	if err != nil || len(storedKey) != keyLen {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, storedKey) == 1
}
