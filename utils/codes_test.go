package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLobbyCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := LobbyCode()
		assert.Len(t, code, codeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q", c)
		}
		seen[code] = true
	}
	// 200 draws from a 31^6 space should essentially never collide
	assert.Greater(t, len(seen), 190)
}
