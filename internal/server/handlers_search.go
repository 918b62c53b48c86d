package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/manabi-ai/manabi/internal/citation"
	"github.com/manabi-ai/manabi/internal/model"
	"github.com/manabi-ai/manabi/internal/rank"
	"github.com/manabi-ai/manabi/internal/retrieval"
	"github.com/manabi-ai/manabi/internal/scope"
)

// chatMaxTopK caps retrieval depth for chat turns. Chat context windows are
// tighter than search result lists, so the cap is lower than the search one.
const chatMaxTopK = 12

// HandleSearch handles POST /v1/search.
//
// The flow is: resolve the caller's profile, compute the effective course
// scope, fan out to the backends, then merge with a server-side scope
// re-check. Backend results are never trusted to be in scope on their own.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req model.SearchRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	p, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	// Keep the backend's copy of the profile fresh. Detached so a slow or
	// down backend never delays the search itself.
	h.mirrorProfile(r, p)

	query := strings.TrimSpace(req.EffectiveQuery())
	topK := scope.ClampTopK(req.EffectiveTopK())
	mode := model.ParseSearchMode(req.Mode)

	eff, err := scope.Compute(p, strings.TrimSpace(req.CourseID), topK, h.teacherDefault)
	if err != nil {
		var forbidden *scope.ErrForbidden
		if errors.As(err, &forbidden) {
			writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, forbidden.Reason)
			return
		}
		h.writeInternalError(w, r, "scope computation failed", err)
		return
	}

	h.metrics.RecordSearch(r.Context(), string(p.Role), string(mode))

	bearer := BearerFromContext(r.Context())
	start := time.Now()
	result, err := h.aggregator.Retrieve(r.Context(), eff, query, mode, req.Answer, bearer)
	h.metrics.RecordRetrievalDuration(r.Context(), float64(time.Since(start).Milliseconds()))
	if err != nil {
		if errors.Is(err, retrieval.ErrAllScopesFailed) {
			writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstreamUnavailable, "search backends are unavailable")
			return
		}
		h.writeInternalError(w, r, "retrieval failed", err)
		return
	}
	h.metrics.RecordDegradedScopes(r.Context(), len(result.Degraded))

	merged := rank.Merge(result.Chunks, eff.AllowedSet(), eff.TopK)

	resp := model.SearchResponse{
		Query:          query,
		Results:        merged,
		DegradedScopes: result.Degraded,
	}
	if req.Answer {
		h.generateAnswer(r, &resp, query, merged)
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// generateAnswer fills the answer fields of resp. Generation failures
// degrade the response rather than failing it: the merged sources are
// already attached, only answer_error is set.
func (h *Handlers) generateAnswer(r *http.Request, resp *model.SearchResponse, query string, merged []model.Chunk) {
	if len(merged) == 0 {
		resp.Answer = "I couldn't find relevant course content for that question."
		h.metrics.RecordAnswer(r.Context(), "skipped")
		return
	}

	asm := citation.Assemble(merged, h.answerBudget)
	resp.Sources = asm.Citations

	if h.generator == nil {
		resp.AnswerError = "answer generation is not configured"
		h.metrics.RecordAnswer(r.Context(), "degraded")
		return
	}

	ans, err := h.generator.Generate(r.Context(), query, asm.Context)
	if err != nil {
		h.logger.Warn("answer generation failed",
			"request_id", RequestIDFromContext(r.Context()), "error", err)
		resp.AnswerError = "answer generation failed"
		h.metrics.RecordAnswer(r.Context(), "degraded")
		return
	}
	resp.Answer = ans
	h.metrics.RecordAnswer(r.Context(), "ok")
}

// HandleChat handles POST /v1/chat.
//
// Chat is always single-course: the course is authorized up front and the
// conversation is forwarded to the RAG backend under the caller's own
// credential. Returned chunks still go through the scope re-check.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	courseID := strings.TrimSpace(req.CourseID)
	if courseID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "course_id is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "at least one message is required")
		return
	}

	p, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	h.mirrorProfile(r, p)

	if !scope.MayAccessCourse(p, courseID) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "not enrolled in this course")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = scope.DefaultTopK
	}
	if topK > chatMaxTopK {
		topK = chatMaxTopK
	}

	h.metrics.RecordSearch(r.Context(), string(p.Role), "chat")

	bearer := BearerFromContext(r.Context())
	chatResp, err := h.client.Chat(r.Context(), p.Subject, courseID, req.Messages, topK, bearer)
	if err != nil {
		var backendErr *retrieval.BackendError
		if errors.As(err, &backendErr) {
			h.logger.Warn("chat backend error",
				"request_id", RequestIDFromContext(r.Context()),
				"status", backendErr.StatusCode)
			writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstreamUnavailable, "chat backend is unavailable")
			return
		}
		h.writeInternalError(w, r, "chat forwarding failed", err)
		return
	}

	chatResp.Chunks = rank.Merge(chatResp.Chunks, map[string]bool{courseID: true}, topK)
	writeJSON(w, r, http.StatusOK, chatResp)
}
