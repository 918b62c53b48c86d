package model

// SearchMode selects the retrieval strategy on the backend.
type SearchMode string

const (
	ModeLexical SearchMode = "lexical"
	ModeVector  SearchMode = "vector"
	ModeHybrid  SearchMode = "hybrid"
)

// ParseSearchMode returns the mode for s, defaulting to lexical when the
// value is empty or unrecognized. Invalid modes are not an error: the UI
// sends free-form values and lexical is always a safe fallback.
func ParseSearchMode(s string) SearchMode {
	switch SearchMode(s) {
	case ModeVector, ModeHybrid:
		return SearchMode(s)
	default:
		return ModeLexical
	}
}

// Chunk is one retrievable unit of course content returned by the retrieval
// backend. Immutable once returned; owned by the request that fetched it.
type Chunk struct {
	ID       string  `json:"id"`
	CourseID string  `json:"course_id"`
	Title    string  `json:"title,omitempty"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`

	// Source is the raw object reference from the backend. It may be an
	// absolute URL, a gs:// or storage:// reference, or a demo:// stub.
	Source string `json:"source,omitempty"`

	// SourceURL is set when Source is already a stable absolute URL.
	SourceURL string `json:"source_url,omitempty"`
}

// Citation binds one merged chunk to a 1-based bracket index for the
// lifetime of a single aggregation call.
type Citation struct {
	Index    int     `json:"index"`
	ID       string  `json:"id"`
	CourseID string  `json:"course_id"`
	Title    string  `json:"title,omitempty"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
	Source   string  `json:"source,omitempty"`
	URL      string  `json:"url,omitempty"`
}

// ChatMessage is one turn of a RAG chat conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}
