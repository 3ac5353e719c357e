package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristic(t *testing.T) {
	h := Heuristic{}
	assert.Equal(t, 0, h.Count(""))
	assert.Equal(t, 1, h.Count("abc"))
	assert.Equal(t, 1, h.Count("abcd"))
	assert.Equal(t, 2, h.Count("abcde"))
}

func TestBPE_CountsWords(t *testing.T) {
	est, err := NewBPE()
	require.NoError(t, err)

	n := est.Count("Confirm the viewing time and address.")
	assert.Greater(t, n, 4)
	assert.Less(t, n, 15)
	assert.Equal(t, 0, est.Count(""))
}

func TestDefaultIsStable(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestTruncate(t *testing.T) {
	h := Heuristic{}
	text := strings.Repeat("abcd", 50)

	out := Truncate(h, text, 10)
	assert.LessOrEqual(t, h.Count(out), 10)
	assert.Len(t, out, 40)

	assert.Equal(t, "short", Truncate(h, "short", 10))
	assert.Equal(t, "", Truncate(h, text, 0))
}
