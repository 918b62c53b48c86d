package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/manabi-ai/manabi/internal/answer"
	"github.com/manabi-ai/manabi/internal/config"
	"github.com/manabi-ai/manabi/internal/linker"
	"github.com/manabi-ai/manabi/internal/model"
	"github.com/manabi-ai/manabi/internal/profile"
	"github.com/manabi-ai/manabi/internal/retrieval"
	"github.com/manabi-ai/manabi/internal/telemetry"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	profiles            profile.Store
	client              *retrieval.Client
	aggregator          *retrieval.Aggregator
	generator           answer.Generator
	broker              *linker.Broker
	metrics             *telemetry.Metrics
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	teacherDefault      config.TeacherScope
	answerBudget        int
	syncTimeout         time.Duration
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Generator, Broker, Metrics.
type HandlersDeps struct {
	Profiles            profile.Store
	Client              *retrieval.Client
	Aggregator          *retrieval.Aggregator
	Generator           answer.Generator
	Broker              *linker.Broker
	Metrics             *telemetry.Metrics
	Logger              *slog.Logger
	Version             string
	TeacherDefault      config.TeacherScope
	AnswerBudget        int
	SyncTimeout         time.Duration
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		profiles:            d.Profiles,
		client:              d.Client,
		aggregator:          d.Aggregator,
		generator:           d.Generator,
		broker:              d.Broker,
		metrics:             d.Metrics,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		teacherDefault:      d.TeacherDefault,
		answerBudget:        d.AnswerBudget,
		syncTimeout:         d.SyncTimeout,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// requirePrincipal loads the caller's profile for the verified subject.
// Writes the error response itself when the caller is unauthenticated or
// has no profile record yet.
func (h *Handlers) requirePrincipal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthenticated, "no claims in context")
		return model.Principal{}, false
	}

	p, err := h.profiles.Get(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, r, http.StatusForbidden, model.ErrCodeNotOnboarded, "profile not found; complete onboarding first")
			return model.Principal{}, false
		}
		h.writeInternalError(w, r, "failed to load profile", err)
		return model.Principal{}, false
	}
	return p, true
}

// writeInternalError logs the underlying error and writes a generic 500.
// The error detail is never echoed to the client.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "internal server error")
}

// mirrorProfile pushes the caller's profile to the search backend without
// blocking the request. The mirror is best-effort: failures are logged and
// swallowed, never surfaced to the caller.
func (h *Handlers) mirrorProfile(r *http.Request, p model.Principal) {
	bearer := BearerFromContext(r.Context())
	reqID := RequestIDFromContext(r.Context())
	ctx := context.WithoutCancel(r.Context())

	go func() {
		ctx, cancel := context.WithTimeout(ctx, h.syncTimeout)
		defer cancel()
		if err := h.client.SyncProfile(ctx, p, bearer); err != nil {
			h.logger.Debug("profile mirror failed", "subject", p.Subject, "request_id", reqID, "error", err)
		}
	}()
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.profiles.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Postgres = "unreachable"
	} else {
		resp.Postgres = "ok"
	}
	if err := h.client.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Retrieval = "unreachable"
	} else {
		resp.Retrieval = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
