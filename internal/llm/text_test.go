package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

func TestCleanOutput(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want string
	}{
		"plain":        {in: ` {"a":1} `, want: `{"a":1}`},
		"think block":  {in: "<think>\nreasoning\n</think>\n{\"a\":1}", want: `{"a":1}`},
		"json fence":   {in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		"bare fence":   {in: "```\n[1,2]\n```", want: `[1,2]`},
		"think+fence":  {in: "<think>x</think>```json\n{}\n```", want: `{}`},
		"inline ticks": {in: "use `x` here", want: "use `x` here"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanOutput(tt.in))
		})
	}
}

func TestChunk(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Chunk("   ", 10))
	assert.Equal(t, []string{"a b c"}, Chunk("a b c", 0))
	assert.Equal(t, []string{"a b\n\nc"}, Chunk("a b\n\nc", 3))
	assert.Equal(t, []string{"a b", "c d"}, Chunk("a b\n\nc d", 3))
	assert.Equal(t, []string{"x", "a b", "c d", "e"}, Chunk("x\n\na b c d e", 2))

	long := strings.Repeat("word ", 10)
	for _, c := range Chunk(long, 4) {
		assert.LessOrEqual(t, len(strings.Fields(c)), 4)
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Cosine([]float64{1, 1}, []float64{2, 2}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float64{1}, []float64{1, 2}))
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 2}))
}

func TestLinkText(t *testing.T) {
	t.Parallel()

	got := LinkText(crawler.Link{URL: "https://galxe.com/quest-board/top_users", Text: " Top  users "})
	assert.Equal(t, "Top users quest board top users", got)
}
