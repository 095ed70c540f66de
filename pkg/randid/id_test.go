package randid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	for _, n := range []int{1, 9, 16, 64} {
		id := Generate(n)
		assert.Len(t, id, n)
		for _, r := range id {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected %q in %q", r, id)
		}
	}

	assert.Empty(t, Generate(0))
	assert.Empty(t, Generate(-1))
	assert.NotEqual(t, Generate(16), Generate(16))
}

func TestStamped(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	id := Stamped("user", at, 9)

	assert.True(t, strings.HasPrefix(id, "user_1700000000123_"), id)
	assert.Len(t, strings.TrimPrefix(id, "user_1700000000123_"), 9)
}
