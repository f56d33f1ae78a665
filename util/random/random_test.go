package random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeq(t *testing.T) {
	s := Seq(32)
	assert.Len(t, s, 32)
	for _, r := range s {
		assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
	}
	assert.NotEqual(t, s, Seq(32))
}
