// Package profile resolves caller profiles from the profile store.
//
// A missing profile is a distinct state ("onboarding incomplete"), not an
// authorization failure and not an empty course set — callers must branch on
// ErrNotFound explicitly.
package profile

import (
	"context"
	"errors"

	"github.com/manabi-ai/manabi/internal/model"
)

// ErrNotFound is returned when no profile record exists for a subject.
var ErrNotFound = errors.New("profile: not found")

// Store loads and updates profile records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the principal for subject, or ErrNotFound.
	// Any other error is a transient store failure and may be retried.
	Get(ctx context.Context, subject string) (model.Principal, error)

	// Upsert creates or replaces the profile for p.Subject.
	Upsert(ctx context.Context, p model.Principal) error

	// Ping checks connectivity to the store.
	Ping(ctx context.Context) error
}
