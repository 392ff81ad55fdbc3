// Package sluggen generates random tags for links submitted without a custom one.
// Generators should be safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"errors"
)

const (
	// urlAlphabet is the 64-symbol URL-safe alphabet also used by nanoid. It
	// holds none of the reserved directory path characters (. # $ [ ]).
	urlAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

	// DefaultLength matches the length of generated tags served by the public site.
	DefaultLength = 5
)

// Generator generates URL tags.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// nanoGenerator draws each symbol from crypto/rand. The alphabet size is a
// power of two, so masking a random byte keeps the distribution uniform.
type nanoGenerator struct{}

// NewNanoID returns a generator producing nanoid-style tags.
func NewNanoID() Generator {
	return &nanoGenerator{}
}

// Generate returns a random tag of the requested length.
func (g *nanoGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = urlAlphabet[b[i]&63]
	}

	return string(b), nil
}
