package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error. Message is safe for end users;
// internal errors and credentials are never echoed here.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"      // 401: missing/invalid credential
	ErrCodeForbidden           = "FORBIDDEN"            // 403: authenticated but out of scope
	ErrCodeNotOnboarded        = "NOT_ONBOARDED"        // 403: no profile record yet
	ErrCodeInvalidRequest      = "INVALID_REQUEST"      // 400: malformed input
	ErrCodeUnsupportedSource   = "UNSUPPORTED_SOURCE"   // 400: object reference not recognized
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE" // 502: every backend call failed
	ErrCodeRateLimited         = "RATE_LIMITED"         // 429
	ErrCodeInternal            = "INTERNAL"             // 500
)

// SearchRequest is the request body for POST /v1/search.
// Query and TopK accept the legacy field aliases the web UI still sends.
type SearchRequest struct {
	Query    string `json:"query"`
	Q        string `json:"q,omitempty"` // alias for Query
	CourseID string `json:"course_id,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
	PageSize int    `json:"page_size,omitempty"` // alias for TopK
	Mode     string `json:"mode,omitempty"`
	Type     string `json:"type,omitempty"` // legacy UI field, accepted and ignored
	Answer   bool   `json:"answer,omitempty"` // request a grounded answer
}

// EffectiveQuery resolves the query/q alias pair.
func (r SearchRequest) EffectiveQuery() string {
	if r.Query != "" {
		return r.Query
	}
	return r.Q
}

// EffectiveTopK resolves the top_k/page_size alias pair (0 = unset).
func (r SearchRequest) EffectiveTopK() int {
	if r.TopK != 0 {
		return r.TopK
	}
	return r.PageSize
}

// SearchResponse is the response for POST /v1/search.
type SearchResponse struct {
	Query   string  `json:"query"`
	Results []Chunk `json:"results"`

	// Answer fields are present only when the request asked for one.
	Answer      string     `json:"answer,omitempty"`
	Sources     []Citation `json:"sources,omitempty"`
	AnswerError string     `json:"answer_error,omitempty"`

	// DegradedScopes lists course scopes whose backend call failed.
	// The results above are still valid for the remaining scopes.
	DegradedScopes []string `json:"degraded_scopes,omitempty"`
}

// ChatRequest is the request body for POST /v1/chat.
type ChatRequest struct {
	CourseID string        `json:"course_id"`
	Messages []ChatMessage `json:"messages"`
	TopK     int           `json:"top_k,omitempty"`
}

// ChatResponse is the response for POST /v1/chat, passed through from the
// RAG backend.
type ChatResponse struct {
	Answer string  `json:"answer"`
	Chunks []Chunk `json:"chunks,omitempty"`
}

// LinkRequest is the request body for POST /v1/documents:link.
type LinkRequest struct {
	CourseID string `json:"course_id"`
	Source   string `json:"source"`
}

// LinkResponse is the response for POST /v1/documents:link.
// URL is null when the source is a known-but-unresolvable stub (demo://).
type LinkResponse struct {
	URL       *string    `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ProfileSyncRequest is the request body for POST /v1/profile/sync.
type ProfileSyncRequest struct {
	Role       string   `json:"role"`
	Department string   `json:"department,omitempty"`
	Courses    []string `json:"courses"`
}

// ProfileSyncResponse is the response for POST /v1/profile/sync.
type ProfileSyncResponse struct {
	Subject string   `json:"subject"`
	Role    Role     `json:"role"`
	Courses []string `json:"courses"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Postgres  string `json:"postgres"`
	Retrieval string `json:"retrieval,omitempty"`
	Uptime    int64  `json:"uptime_seconds"`
}
