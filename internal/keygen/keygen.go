// Package keygen generates credential identifiers and evaluates their age.
package keygen

import (
	"crypto/rand"
	"fmt"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// Alphabet is the character set used for generated identifiers. Visually
// ambiguous characters (0/O, 1/l/I) are excluded.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// Generate produces a random token of exactly length characters drawn from
// Alphabet using crypto/rand. When prefix is non-empty the result is
// "<prefix>_<token>".
func Generate(length int, prefix string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: key length must be positive", shared.ErrInvalidInput)
	}

	token := make([]byte, length)
	// Rejection sampling keeps the distribution uniform across the alphabet.
	max := byte(256 - 256%len(Alphabet))
	buf := make([]byte, length)
	filled := 0
	for filled < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("keygen: read random: %w", err)
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			token[filled] = Alphabet[int(b)%len(Alphabet)]
			filled++
			if filled == length {
				break
			}
		}
	}

	if prefix == "" {
		return string(token), nil
	}
	return prefix + "_" + string(token), nil
}
