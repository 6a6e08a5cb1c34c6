package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 1, CountTokens(""))
	assert.Equal(t, 4, CountTokens("one two three"))
}

func TestTruncateRunes(t *testing.T) {
	out, cut := TruncateRunes("héllo wörld", 5)
	assert.True(t, cut)
	assert.Equal(t, "héllo", out)

	out, cut = TruncateRunes("short", 10)
	assert.False(t, cut)
	assert.Equal(t, "short", out)
}
