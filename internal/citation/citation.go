// Package citation builds the numbered source list and bounded context
// block handed to the grounded-answer generator.
package citation

import (
	"fmt"
	"strings"

	"github.com/manabi-ai/manabi/internal/model"
)

// Character budgets: generous for generator context, tight for the
// user-facing snippet shown next to each citation.
const (
	ContextBudget = 1200
	SnippetBudget = 240
)

const ellipsis = '…'

// Normalize collapses runs of whitespace to single spaces and trims.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate normalizes s and bounds it to max characters (runes), appending a
// single ellipsis when content was dropped. Idempotent for already-short
// input; never splits a rune. A max below 1 is treated as 1.
func Truncate(s string, max int) string {
	if max < 1 {
		max = 1
	}
	t := Normalize(s)
	runes := []rune(t)
	if len(runes) <= max {
		return t
	}
	return string(runes[:max-1]) + string(ellipsis)
}

// Assembled is the output of one assembly: a dense 1-indexed citation list
// and the concatenated context block, entry i rendered under marker [i].
type Assembled struct {
	Citations []model.Citation
	Context   string
}

// Assemble numbers the merged chunks 1..N in order and renders the context
// block. Indices are bound to this call only and never reused across calls.
func Assemble(chunks []model.Chunk, contextBudget int) Assembled {
	if contextBudget <= 0 {
		contextBudget = ContextBudget
	}

	citations := make([]model.Citation, 0, len(chunks))
	var b strings.Builder
	for i, c := range chunks {
		title := Normalize(c.Title)
		if title == "" {
			title = c.ID
		}

		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (course=%s) %s\n%s",
			i+1, c.CourseID, title, Truncate(c.Content, contextBudget))

		citations = append(citations, model.Citation{
			Index:    i + 1,
			ID:       c.ID,
			CourseID: c.CourseID,
			Title:    c.Title,
			Score:    c.Score,
			Snippet:  Truncate(c.Content, SnippetBudget),
			Source:   c.Source,
			URL:      c.SourceURL,
		})
	}

	return Assembled{Citations: citations, Context: b.String()}
}
