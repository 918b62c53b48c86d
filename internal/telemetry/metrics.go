package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service's metric instruments. All methods are safe to
// call on a nil receiver, so handlers don't need to guard against a
// disabled telemetry pipeline.
type Metrics struct {
	searchRequests metric.Int64Counter
	scopesDegraded metric.Int64Counter
	answerOutcomes metric.Int64Counter
	linksMinted    metric.Int64Counter
	retrievalMS    metric.Float64Histogram
}

// NewMetrics registers the service instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := Meter("manabi")

	searchRequests, err := meter.Int64Counter("manabi.search.requests",
		metric.WithDescription("Search and chat requests by role and mode"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: search counter: %w", err)
	}
	scopesDegraded, err := meter.Int64Counter("manabi.retrieval.scopes_degraded",
		metric.WithDescription("Course scopes that failed during fan-out"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: degraded counter: %w", err)
	}
	answerOutcomes, err := meter.Int64Counter("manabi.answer.outcomes",
		metric.WithDescription("Answer generation outcomes (ok, degraded, skipped)"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: answer counter: %w", err)
	}
	linksMinted, err := meter.Int64Counter("manabi.links.minted",
		metric.WithDescription("Signed document links minted"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: links counter: %w", err)
	}
	retrievalMS, err := meter.Float64Histogram("manabi.retrieval.duration_ms",
		metric.WithDescription("End-to-end retrieval fan-out duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: retrieval histogram: %w", err)
	}

	return &Metrics{
		searchRequests: searchRequests,
		scopesDegraded: scopesDegraded,
		answerOutcomes: answerOutcomes,
		linksMinted:    linksMinted,
		retrievalMS:    retrievalMS,
	}, nil
}

// RecordSearch counts one search or chat request.
func (m *Metrics) RecordSearch(ctx context.Context, role, mode string) {
	if m == nil {
		return
	}
	m.searchRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", role), attribute.String("mode", mode)))
}

// RecordDegradedScopes counts course scopes that failed during fan-out.
func (m *Metrics) RecordDegradedScopes(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.scopesDegraded.Add(ctx, int64(n))
}

// RecordAnswer counts one answer generation outcome.
func (m *Metrics) RecordAnswer(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.answerOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordLinkMinted counts one signed link by source kind (http, gcs, demo).
func (m *Metrics) RecordLinkMinted(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.linksMinted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordRetrievalDuration records one fan-out duration in milliseconds.
func (m *Metrics) RecordRetrievalDuration(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.retrievalMS.Record(ctx, ms)
}
