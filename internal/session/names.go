package session

import (
	"math/rand"
	"strings"
)

const (
	nameLetters = "abcdefghijklmnopqrstuvwxyz"
	nameDigits  = "0123456789"
)

// randomPlayerName builds a guest name of 5 distinct lowercase letters
// followed by 3 distinct digits, e.g. "kxjqw381".
func randomPlayerName() string {
	var b strings.Builder
	b.Grow(8)

	for _, run := range []struct {
		alphabet string
		n        int
	}{
		{nameLetters, 5},
		{nameDigits, 3},
	} {
		perm := rand.Perm(len(run.alphabet))
		for i := 0; i < run.n; i++ {
			b.WriteByte(run.alphabet[perm[i]])
		}
	}

	return b.String()
}
