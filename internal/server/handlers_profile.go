package server

import (
	"net/http"
	"strings"

	"github.com/manabi-ai/manabi/internal/model"
)

// HandleProfileSync handles POST /v1/profile/sync.
//
// The web app calls this after onboarding and whenever enrollment changes.
// The profile is stored locally (it is the source of truth for scope
// computation) and mirrored to the search backend in the background.
func (h *Handlers) HandleProfileSync(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileSyncRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthenticated, "no claims in context")
		return
	}

	courses := make([]string, 0, len(req.Courses))
	seen := make(map[string]bool, len(req.Courses))
	for _, c := range req.Courses {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		courses = append(courses, c)
	}

	p := model.Principal{
		Subject:    claims.Subject,
		Role:       model.ParseRole(req.Role),
		Department: strings.TrimSpace(req.Department),
		Courses:    courses,
	}

	if err := h.profiles.Upsert(r.Context(), p); err != nil {
		h.writeInternalError(w, r, "failed to store profile", err)
		return
	}

	h.mirrorProfile(r, p)

	writeJSON(w, r, http.StatusOK, model.ProfileSyncResponse{
		Subject: p.Subject,
		Role:    p.Role,
		Courses: p.Courses,
	})
}
