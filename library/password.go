package library

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for newly hashed passwords.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword derives a salted Argon2id digest and encodes it as
// "base64(salt):base64(digest)".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(digest), nil
}

// CheckPassword reports whether password matches a stored hash. Malformed
// hashes never match. Hashes written by the older single-pass SHA-256 scheme
// are still accepted.
func CheckPassword(password, stored string) bool {
	saltPart, digestPart, ok := strings.Cut(stored, ":")
	if !ok || saltPart == "" || digestPart == "" || strings.Contains(digestPart, ":") {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(digestPart)
	if err != nil || len(want) != argonKeyLen {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	if subtle.ConstantTimeCompare(got, want) == 1 {
		return true
	}
	return subtle.ConstantTimeCompare(legacyDigest(password, salt), want) == 1
}

// legacyDigest is SHA-256 over salt followed by password.
func legacyDigest(password string, salt []byte) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}
