package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/manabi-ai/manabi/internal/linker"
	"github.com/manabi-ai/manabi/internal/model"
	"github.com/manabi-ai/manabi/internal/scope"
)

// HandleLink handles POST /v1/documents:link.
//
// Minting a link is its own authorization decision: the caller must be able
// to access the course the document belongs to, checked against the stored
// profile on every call. Links are never cached; each request signs fresh.
func (h *Handlers) HandleLink(w http.ResponseWriter, r *http.Request) {
	var req model.LinkRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	courseID := strings.TrimSpace(req.CourseID)
	if courseID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "course_id is required")
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidRequest, "source is required")
		return
	}

	p, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	if !scope.MayAccessCourse(p, courseID) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "not enrolled in this course")
		return
	}

	link, err := h.broker.Resolve(r.Context(), req.Source)
	if err != nil {
		if errors.Is(err, linker.ErrUnsupportedSource) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeUnsupportedSource, "source reference is not supported")
			return
		}
		h.writeInternalError(w, r, "link signing failed", err)
		return
	}

	// Known stub source (demo content): resolvable to nothing, not an error.
	if link == nil {
		h.metrics.RecordLinkMinted(r.Context(), "demo")
		writeJSON(w, r, http.StatusOK, model.LinkResponse{URL: nil})
		return
	}

	resp := model.LinkResponse{URL: &link.URL}
	if !link.ExpiresAt.IsZero() {
		expires := link.ExpiresAt
		resp.ExpiresAt = &expires
		h.metrics.RecordLinkMinted(r.Context(), "gcs")
	} else {
		h.metrics.RecordLinkMinted(r.Context(), "http")
	}
	writeJSON(w, r, http.StatusOK, resp)
}
