// Package idgen generates initiative IDs when the caller does not supply one.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefix marks a server-generated initiative ID.
const Prefix = "init-"

// Alphabet is lowercase so generated IDs survive case-insensitive handling
// in URLs and spreadsheets.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters after the prefix.
const Length = 8

// NewInitiativeID returns a fresh "init-xxxxxxxx" ID.
func NewInitiativeID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return Prefix + id, nil
}

// IsGenerated reports whether id has the shape NewInitiativeID produces.
func IsGenerated(id string) bool {
	rest, ok := strings.CutPrefix(id, Prefix)
	if !ok || len(rest) != Length {
		return false
	}
	for _, c := range rest {
		if !strings.ContainsRune(Alphabet, c) {
			return false
		}
	}
	return true
}
