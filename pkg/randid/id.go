// Package randid generates short random identifiers. The ids are not
// suitable as secrets.
package randid

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Alphabet is the set of characters ids are drawn from.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a random id of n characters from Alphabet.
func Generate(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = Alphabet[rand.IntN(len(Alphabet))]
	}
	return string(b)
}

// Stamped returns "<prefix>_<unix millis>_<random>", e.g.
// "user_1700000000000_k3j9x0a2b". The random part has n characters.
func Stamped(prefix string, t time.Time, n int) string {
	return fmt.Sprintf("%s_%d_%s", prefix, t.UnixMilli(), Generate(n))
}
