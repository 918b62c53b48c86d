// Package model defines the domain types and API contracts for Manabi.
package model

// Role is the caller's role as recorded in their profile.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// ParseRole maps a raw profile role onto a known Role.
// Anything that is not exactly "teacher" is treated as a student,
// matching the deny-by-default posture of the scope rules.
func ParseRole(s string) Role {
	if s == string(RoleTeacher) {
		return RoleTeacher
	}
	return RoleStudent
}

// Principal is the authenticated caller plus their resolved profile:
// role, department, and the set of courses they are authorized for.
// A Principal is resolved fresh per request and never mutated.
type Principal struct {
	Subject    string
	Role       Role
	Department string
	Courses    []string
}

// Authorized reports whether the principal's course set contains courseID.
func (p Principal) Authorized(courseID string) bool {
	for _, c := range p.Courses {
		if c == courseID {
			return true
		}
	}
	return false
}

// CourseSet returns the authorized courses as a lookup set.
func (p Principal) CourseSet() map[string]bool {
	set := make(map[string]bool, len(p.Courses))
	for _, c := range p.Courses {
		set[c] = true
	}
	return set
}
