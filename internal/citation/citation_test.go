package citation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manabi-ai/manabi/internal/model"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a\n\nb\t c  "))
	assert.Equal(t, "", Normalize("   \n\t "))
	assert.Equal(t, "already clean", Normalize("already clean"))
}

func TestTruncateShortInputUnchanged(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hello", Truncate("hello", 5))
}

func TestTruncateBoundsAndEllipsis(t *testing.T) {
	out := Truncate(strings.Repeat("x", 500), 240)
	runes := []rune(out)
	assert.Len(t, runes, 240)
	assert.Equal(t, '…', runes[len(runes)-1])
}

func TestTruncateNeverSplitsRune(t *testing.T) {
	out := Truncate(strings.Repeat("世", 300), 240)
	assert.True(t, utf8.ValidString(out))
	assert.Len(t, []rune(out), 240)
}

func TestTruncateClampsNonPositiveMax(t *testing.T) {
	assert.Equal(t, "…", Truncate("hello", 0))
	assert.Equal(t, "…", Truncate("hello", -5))
	assert.Equal(t, "", Truncate("", 0))
	assert.Equal(t, "x", Truncate("x", -1))
}

func TestTruncateIdempotent(t *testing.T) {
	once := Truncate(strings.Repeat("word ", 200), 240)
	twice := Truncate(once, 240)
	assert.Equal(t, once, twice)
}

func TestAssembleIndicesDenseAndOneBased(t *testing.T) {
	chunks := []model.Chunk{
		{ID: "a", CourseID: "cs101", Title: "Lecture 1", Content: "alpha", Score: 0.9},
		{ID: "b", CourseID: "cs101", Title: "Lecture 2", Content: "beta", Score: 0.8},
		{ID: "c", CourseID: "math201", Title: "Notes", Content: "gamma", Score: 0.7},
	}
	asm := Assemble(chunks, ContextBudget)

	require.Len(t, asm.Citations, 3)
	for i, c := range asm.Citations {
		assert.Equal(t, i+1, c.Index)
	}
	assert.Equal(t, "a", asm.Citations[0].ID)
	assert.Equal(t, "c", asm.Citations[2].ID)
}

func TestAssembleContextBlock(t *testing.T) {
	chunks := []model.Chunk{
		{ID: "a", CourseID: "cs101", Title: "Sorting", Content: "Quicksort partitions.", Score: 0.9},
		{ID: "b", CourseID: "math201", Title: "Limits", Content: "Epsilon delta.", Score: 0.8},
	}
	asm := Assemble(chunks, ContextBudget)

	assert.Contains(t, asm.Context, "[1] (course=cs101) Sorting\nQuicksort partitions.")
	assert.Contains(t, asm.Context, "[2] (course=math201) Limits\nEpsilon delta.")
	// Entries are separated by a blank line.
	assert.Contains(t, asm.Context, "Quicksort partitions.\n\n[2]")
}

func TestAssembleFallsBackToIDForEmptyTitle(t *testing.T) {
	chunks := []model.Chunk{
		{ID: "doc-42", CourseID: "cs101", Title: "  ", Content: "text", Score: 0.5},
	}
	asm := Assemble(chunks, ContextBudget)
	assert.Contains(t, asm.Context, "[1] (course=cs101) doc-42")
}

func TestAssembleTruncatesContentPerBudget(t *testing.T) {
	chunks := []model.Chunk{
		{ID: "a", CourseID: "c", Title: "T", Content: strings.Repeat("y", 5000), Score: 0.5},
	}
	asm := Assemble(chunks, 100)
	// Context uses the per-call budget, snippet the fixed one.
	assert.LessOrEqual(t, len([]rune(asm.Context)), 100+len("[1] (course=c) T\n"))
	assert.Len(t, []rune(asm.Citations[0].Snippet), SnippetBudget)
}

func TestAssembleEmptyInput(t *testing.T) {
	asm := Assemble(nil, ContextBudget)
	assert.Empty(t, asm.Citations)
	assert.Empty(t, asm.Context)
}
