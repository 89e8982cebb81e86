package session

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomPlayerName(t *testing.T) {
	re := regexp.MustCompile(`^[a-z]{5}[0-9]{3}$`)

	for i := 0; i < 1000; i++ {
		name := randomPlayerName()

		require.Regexp(t, re, name)

		seen := map[byte]bool{}
		for j := 0; j < len(name); j++ {
			assert.False(t, seen[name[j]], "name %q repeats %q", name, name[j])
			seen[name[j]] = true
		}
	}
}
