// Package retrieval talks to the external course retrieval and RAG chat
// backends, and fans a query out across the caller's course scopes.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manabi-ai/manabi/internal/model"
)

// BackendError carries the upstream HTTP status so callers can distinguish
// authorization refusals from availability failures.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("retrieval: backend returned %d: %s", e.StatusCode, e.Body)
}

// Config holds the settings needed to construct a Client.
type Config struct {
	// SearchBaseURL is the root URL of the search backend.
	SearchBaseURL string

	// RAGBaseURL is the root URL of the RAG chat backend.
	RAGBaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default
	// client with a 30-second timeout is used. Per-call deadlines are
	// applied by callers via context.
	HTTPClient *http.Client
}

// Client is an HTTP client for the retrieval and RAG backends.
// All methods are safe for concurrent use. The caller's bearer credential is
// forwarded on every call so the backends can apply their own enforcement.
type Client struct {
	searchBase string
	ragBase    string
	client     *http.Client
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.SearchBaseURL == "" {
		return nil, fmt.Errorf("retrieval: SearchBaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		searchBase: strings.TrimRight(cfg.SearchBaseURL, "/"),
		ragBase:    strings.TrimRight(cfg.RAGBaseURL, "/"),
		client:     httpClient,
	}, nil
}

// searchRequest is the wire request for all document search variants.
type searchRequest struct {
	Query    string `json:"query"`
	PageSize int    `json:"page_size"`
	Mode     string `json:"mode"`
}

// searchResponse is the wire response from the search backend.
type searchResponse struct {
	Results []wireChunk `json:"results"`
}

type wireChunk struct {
	ID       string  `json:"id"`
	CourseID string  `json:"course_id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Source   string  `json:"source"`
}

// SearchCourse runs one course-scoped search call.
func (c *Client) SearchCourse(ctx context.Context, courseID, query string, pageSize int, mode model.SearchMode, bearer string) ([]model.Chunk, error) {
	endpoint := fmt.Sprintf("%s/v1/courses/%s/documents:search", c.searchBase, url.PathEscape(courseID))
	return c.search(ctx, endpoint, courseID, query, pageSize, mode, bearer)
}

// RAGSearchCourse runs one course-scoped retrieval call against the
// RAG-tuned index.
func (c *Client) RAGSearchCourse(ctx context.Context, courseID, query string, pageSize int, mode model.SearchMode, bearer string) ([]model.Chunk, error) {
	endpoint := fmt.Sprintf("%s/v1/courses/%s/documents:ragSearch", c.searchBase, url.PathEscape(courseID))
	return c.search(ctx, endpoint, courseID, query, pageSize, mode, bearer)
}

// SearchGlobal runs one search across every course the backend indexes.
// Used only for unrestricted-teacher scopes.
func (c *Client) SearchGlobal(ctx context.Context, query string, pageSize int, mode model.SearchMode, bearer string) ([]model.Chunk, error) {
	return c.search(ctx, c.searchBase+"/v1/documents:search", "", query, pageSize, mode, bearer)
}

func (c *Client) search(ctx context.Context, endpoint, courseID, query string, pageSize int, mode model.SearchMode, bearer string) ([]model.Chunk, error) {
	var resp searchResponse
	err := c.post(ctx, endpoint, bearer, searchRequest{
		Query:    query,
		PageSize: pageSize,
		Mode:     string(mode),
	}, &resp)
	if err != nil {
		return nil, err
	}

	chunks := make([]model.Chunk, 0, len(resp.Results))
	for _, w := range resp.Results {
		// Records with no identifier or no content are unusable for
		// citation; drop them without counting an error.
		if w.ID == "" || w.Content == "" {
			continue
		}
		chunk := model.Chunk{
			ID:       w.ID,
			CourseID: w.CourseID,
			Title:    w.Title,
			Content:  w.Content,
			Score:    w.Score,
			Source:   w.Source,
		}
		if chunk.CourseID == "" {
			chunk.CourseID = courseID
		}
		if strings.HasPrefix(w.Source, "http://") || strings.HasPrefix(w.Source, "https://") {
			chunk.SourceURL = w.Source
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Ping checks that the search backend is reachable. Used by the gateway's
// own health endpoint; a non-2xx status counts as unreachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchBase+"/health", nil)
	if err != nil {
		return fmt.Errorf("retrieval: build health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("retrieval: health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("retrieval: health check returned %d", resp.StatusCode)
	}
	return nil
}

// SyncProfile mirrors the principal's profile fields into the search
// backend's own cache. Advisory only; callers treat failures as
// best-effort and never surface them.
func (c *Client) SyncProfile(ctx context.Context, p model.Principal, bearer string) error {
	body := model.ProfileSyncRequest{
		Role:       string(p.Role),
		Department: p.Department,
		Courses:    p.Courses,
	}
	if body.Courses == nil {
		body.Courses = []string{}
	}
	return c.post(ctx, c.searchBase+"/v1/users/me", bearer, body, nil)
}

// chatRequest is the wire request for the RAG chat backend.
type chatRequest struct {
	StudentID string              `json:"student_id"`
	CourseID  string              `json:"course_id"`
	Messages  []model.ChatMessage `json:"messages"`
	TopK      int                 `json:"top_k"`
}

// Chat forwards one chat turn to the RAG backend and returns its grounded
// answer with the chunks it retrieved.
func (c *Client) Chat(ctx context.Context, subject, courseID string, messages []model.ChatMessage, topK int, bearer string) (model.ChatResponse, error) {
	if c.ragBase == "" {
		return model.ChatResponse{}, fmt.Errorf("retrieval: RAG backend not configured")
	}
	endpoint := fmt.Sprintf("%s/v1/courses/%s/rag:chat", c.ragBase, url.PathEscape(courseID))

	var resp model.ChatResponse
	err := c.post(ctx, endpoint, bearer, chatRequest{
		StudentID: subject,
		CourseID:  courseID,
		Messages:  messages,
		TopK:      topK,
	}, &resp)
	if err != nil {
		return model.ChatResponse{}, err
	}
	return resp, nil
}

// post sends a JSON POST with the forwarded bearer credential and decodes
// the response into out (when non-nil).
func (c *Client) post(ctx context.Context, endpoint, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("retrieval: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("retrieval: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("retrieval: %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Bounded read: error bodies are logged, never streamed back.
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &BackendError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(slurp))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("retrieval: decode response: %w", err)
	}
	return nil
}
