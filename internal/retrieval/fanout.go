package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manabi-ai/manabi/internal/model"
	"github.com/manabi-ai/manabi/internal/scope"
)

// ErrAllScopesFailed is returned when every per-scope retrieval call failed.
// A subset failing degrades gracefully; all failing must not masquerade as
// an empty result.
var ErrAllScopesFailed = errors.New("retrieval: all scopes failed")

// MinQueryLength is the minimum trimmed query length. Shorter queries
// short-circuit to an empty result without touching any backend.
const MinQueryLength = 2

// Searcher is the per-scope call the fan-out needs. *Client implements it
// twice, once per index variant; tests substitute fakes.
type Searcher func(ctx context.Context, courseID, query string, pageSize int, mode model.SearchMode, bearer string) ([]model.Chunk, error)

// Aggregator fans one query out across the effective course scopes.
type Aggregator struct {
	client  *Client
	timeout time.Duration // independent deadline per scope call
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. timeout applies independently to each
// per-scope call.
func NewAggregator(client *Client, timeout time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{client: client, timeout: timeout, logger: logger}
}

// Result is the outcome of one fan-out.
type Result struct {
	// Chunks is the concatenation of all successful per-scope results in
	// deterministic scope order. Not yet deduplicated or ranked.
	Chunks []model.Chunk

	// Degraded lists scopes whose call errored or timed out. Each
	// contributed zero results; the aggregation as a whole still succeeded.
	Degraded []string
}

// Retrieve issues one retrieval call per scope, concurrently, and joins all
// of them — a scope failure never cancels its siblings, only caller
// cancellation does. rag selects the RAG-tuned index for per-course calls.
//
// Returns ErrAllScopesFailed when no scope produced a response.
func (a *Aggregator) Retrieve(ctx context.Context, eff scope.Effective, query string, mode model.SearchMode, rag bool, bearer string) (Result, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return Result{Chunks: []model.Chunk{}}, nil
	}

	if eff.Unrestricted {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		chunks, err := a.client.SearchGlobal(callCtx, query, eff.TopK, mode, bearer)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			a.logger.Warn("global retrieval failed", "error", err)
			return Result{}, ErrAllScopesFailed
		}
		return Result{Chunks: chunks}, nil
	}

	search := Searcher(a.client.SearchCourse)
	if rag {
		search = a.client.RAGSearchCourse
	}

	perScope := make([][]model.Chunk, len(eff.Courses))
	failed := make([]bool, len(eff.Courses))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, courseID := range eff.Courses {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(groupCtx, a.timeout)
			defer cancel()

			chunks, err := search(callCtx, courseID, query, eff.PerScopeBudget, mode, bearer)
			if err != nil {
				// Degrade this scope only. Returning the error would
				// cancel the sibling calls via the group context.
				failed[i] = true
				a.logger.Warn("scope retrieval failed", "course_id", courseID, "error", err)
				return nil
			}
			perScope[i] = chunks
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		// Caller cancelled or the request deadline elapsed: discard
		// whatever partial results arrived.
		return Result{}, err
	}

	var result Result
	allFailed := true
	for i, courseID := range eff.Courses {
		if failed[i] {
			result.Degraded = append(result.Degraded, courseID)
			continue
		}
		allFailed = false
		result.Chunks = append(result.Chunks, perScope[i]...)
	}
	if allFailed {
		return Result{}, ErrAllScopesFailed
	}
	if result.Chunks == nil {
		result.Chunks = []model.Chunk{}
	}
	return result, nil
}

