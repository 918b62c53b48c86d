// Package rank merges per-scope retrieval results into a single authorized,
// deduplicated, score-ordered result set.
//
// The merge is pure CPU work: no I/O, deterministic for a fixed input
// sequence. The scope re-check here is a mandatory second authorization
// boundary — the retrieval backend is not trusted to have enforced it.
package rank

import (
	"sort"

	"github.com/manabi-ai/manabi/internal/model"
)

// Merge deduplicates chunks by identifier (keeping the highest score, first
// wins on an exact tie), discards chunks whose owning course is not in
// allowed, sorts descending by score with a stable tie-break on insertion
// order, and truncates to topK.
//
// allowed == nil means unrestricted (no scope filtering). An empty non-nil
// set discards everything.
func Merge(chunks []model.Chunk, allowed map[string]bool, topK int) []model.Chunk {
	// Dedup keeping best score. Insertion order of the first sighting of
	// each id is preserved so the later stable sort has a defined tie-break.
	index := make(map[string]int, len(chunks))
	merged := make([]model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" || c.Content == "" {
			continue
		}
		if i, ok := index[c.ID]; ok {
			if c.Score > merged[i].Score {
				merged[i] = c
			}
			continue
		}
		index[c.ID] = len(merged)
		merged = append(merged, c)
	}

	// Server-side scope enforcement on the merged set.
	if allowed != nil {
		authorized := merged[:0]
		for _, c := range merged {
			if allowed[c.CourseID] {
				authorized = append(authorized, c)
			}
		}
		merged = authorized
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
