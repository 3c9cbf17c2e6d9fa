// Package ids generates identifiers: time-ordered primary keys and the
// random share tokens handed out for read-only project links.
package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	googleuuid "github.com/google/uuid"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// shareSuffixLen is the number of random base36 characters in a share token.
	shareSuffixLen = 8

	sharePrefix = "shared-"
)

// New generates a new UUIDv7 string. UUIDv7 is time-ordered and suitable for
// use as database primary keys. Falls back to a random UUIDv4 if the clock
// sequence cannot be read.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates and normalizes a UUID string.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}

// ShareToken builds a token of the form shared-<projectID>-<8 base36 chars>.
// Uniqueness is not checked here; the database enforces it with an index.
func ShareToken(projectID string) (string, error) {
	suffix, err := RandomBase36(shareSuffixLen)
	if err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return sharePrefix + projectID + "-" + suffix, nil
}

// ProjectIDFromShareToken extracts the project id embedded in a share token.
func ProjectIDFromShareToken(token string) (string, bool) {
	if !strings.HasPrefix(token, sharePrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(token, sharePrefix)
	i := strings.LastIndex(rest, "-")
	if i <= 0 || len(rest)-i-1 != shareSuffixLen {
		return "", false
	}
	return rest[:i], true
}

// RandomBase36 returns n characters drawn uniformly from [0-9a-z] using
// crypto/rand.
func RandomBase36(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String(), nil
}
