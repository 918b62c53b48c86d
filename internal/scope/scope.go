// Package scope computes the effective course scopes a query may run
// against, and the per-scope retrieval budget.
//
// This package is pure: no I/O, deterministic for a given principal and
// request. It shares the single-course authorization rule with the document
// link broker, which re-applies it independently at its own entry point.
package scope

import (
	"fmt"
	"sort"

	"github.com/manabi-ai/manabi/internal/config"
	"github.com/manabi-ai/manabi/internal/model"
)

// TopK bounds for one aggregation call. Out-of-range values are clamped,
// not rejected.
const (
	MinTopK     = 1
	MaxTopK     = 20
	DefaultTopK = 5
)

// maxFanOutDivisor caps how many scopes share the top-K budget; beyond this
// each scope still contributes at least minPerScope candidates.
const (
	maxFanOutDivisor = 4
	minPerScope      = 2
)

// ErrForbidden is the sentinel wrapped by all scope denials.
type ErrForbidden struct {
	Reason string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("scope: forbidden: %s", e.Reason)
}

// Effective is the resolved scope set for one aggregation call.
type Effective struct {
	// Courses are the course identifiers to fan out across, sorted for
	// deterministic fan-out order. Empty when Unrestricted.
	Courses []string

	// Unrestricted is true for a course-less teacher under the "all"
	// policy: the query runs against the backend's global index and the
	// merge step skips the scope filter.
	Unrestricted bool

	// TopK is the clamped result count for the merged set.
	TopK int

	// PerScopeBudget is the page size for each per-scope retrieval call.
	PerScopeBudget int
}

// AllowedSet returns the course set to enforce during merge, or nil when the
// scope is unrestricted (nil means no filtering, matching the broker rule).
func (e Effective) AllowedSet() map[string]bool {
	if e.Unrestricted {
		return nil
	}
	set := make(map[string]bool, len(e.Courses))
	for _, c := range e.Courses {
		set[c] = true
	}
	return set
}

// ClampTopK bounds k to [MinTopK, MaxTopK], substituting DefaultTopK for
// unset (zero or negative is treated as unset-or-nonsense and clamped up).
func ClampTopK(k int) int {
	if k == 0 {
		return DefaultTopK
	}
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// Compute resolves the effective scope for principal. requestedCourse may be
// empty. Returns *ErrForbidden when the principal may not query the
// requested scope at all.
func Compute(p model.Principal, requestedCourse string, topK int, teacherDefault config.TeacherScope) (Effective, error) {
	k := ClampTopK(topK)

	if requestedCourse != "" {
		if !MayAccessCourse(p, requestedCourse) {
			return Effective{}, &ErrForbidden{Reason: "not authorized for course " + requestedCourse}
		}
		return Effective{
			Courses:        []string{requestedCourse},
			TopK:           k,
			PerScopeBudget: k,
		}, nil
	}

	if p.Role == model.RoleStudent {
		if len(p.Courses) == 0 {
			return Effective{}, &ErrForbidden{Reason: "no registered courses"}
		}
		return multiCourse(p.Courses, k), nil
	}

	// Teacher, no specific course.
	if len(p.Courses) > 0 {
		return multiCourse(p.Courses, k), nil
	}
	if teacherDefault == config.TeacherScopeAll {
		return Effective{Unrestricted: true, TopK: k, PerScopeBudget: k}, nil
	}
	return Effective{}, &ErrForbidden{Reason: "no registered courses"}
}

// MayAccessCourse is the single-course authorization rule, shared with the
// document link broker (which re-applies it at its own entry point):
// teachers may access any single named course, students only courses in
// their authorized set.
func MayAccessCourse(p model.Principal, courseID string) bool {
	return p.Role == model.RoleTeacher || p.Authorized(courseID)
}

// multiCourse builds the fan-out scope across courses, deduplicated and
// sorted, with the bounded per-scope budget:
// max(minPerScope, ceil(k / min(n, maxFanOutDivisor))).
func multiCourse(courses []string, k int) Effective {
	seen := make(map[string]bool, len(courses))
	uniq := make([]string, 0, len(courses))
	for _, c := range courses {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		uniq = append(uniq, c)
	}
	sort.Strings(uniq)

	budget := k
	if len(uniq) > 1 {
		div := len(uniq)
		if div > maxFanOutDivisor {
			div = maxFanOutDivisor
		}
		budget = (k + div - 1) / div
		if budget < minPerScope {
			budget = minPerScope
		}
	}

	return Effective{Courses: uniq, TopK: k, PerScopeBudget: budget}
}
