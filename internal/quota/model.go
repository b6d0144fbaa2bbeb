package quota

import "strings"

// Scope is the granularity a quota applies at.
type Scope string

const (
	// ScopeUser is the default per-user quota, not bound to any
	// concrete user or course.
	ScopeUser Scope = "user"
	// ScopeCourse limits a whole course.
	ScopeCourse Scope = "course"
	// ScopeCourseUser is a per-member override within a course.
	ScopeCourseUser Scope = "course-user"
	// ScopeTotal limits the tool across all users and courses.
	ScopeTotal Scope = "total"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeUser, ScopeCourse, ScopeCourseUser, ScopeTotal:
		return true
	}
	return false
}

func (s Scope) String() string { return string(s) }

// ScopeSet is a fixed set of scopes legal for one endpoint family.
type ScopeSet []Scope

var (
	// GlobalScopes are the scopes reachable through the top-level
	// /quota endpoints.
	GlobalScopes = ScopeSet{ScopeUser, ScopeCourse, ScopeTotal}
	// CourseScopes are the scopes reachable through the
	// /quota/course/{id} endpoints.
	CourseScopes = ScopeSet{ScopeCourse, ScopeCourseUser}
	// MemberScopes is the single scope legal for per-member updates.
	MemberScopes = ScopeSet{ScopeCourseUser}
)

func (ss ScopeSet) Contains(s Scope) bool {
	for _, m := range ss {
		if m == s {
			return true
		}
	}
	return false
}

func (ss ScopeSet) String() string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// ResetInterval is the cadence at which a quota's consumption resets.
type ResetInterval string

const (
	ResetDaily    ResetInterval = "daily"
	ResetWeekly   ResetInterval = "weekly"
	ResetMonthly  ResetInterval = "monthly"
	ResetSemester ResetInterval = "semester"
)

// Definition is a catalog entry describing one kind of quota. The pair
// (scope, feature) is unique across the catalog; a nil feature means
// the definition applies to all features and is a distinct key from any
// concrete feature string.
type Definition struct {
	ID            int64             `json:"-"`
	Type          string            `json:"type"`
	Description   map[string]string `json:"description"`
	ResetInterval *ResetInterval    `json:"reset_interval"`
	Scope         Scope             `json:"scope"`
	Feature       *string           `json:"feature"`
}

// Record is a concrete limit instance. At most one record exists per
// (scope, feature, user_id, course_id) key, where NULL columns collide
// with NULL but not with any concrete value.
type Record struct {
	ID           int64   `json:"-"`
	Limit        int     `json:"limit"`
	Used         int     `json:"used"`
	Type         *string `json:"type"`
	Scope        Scope   `json:"scope"`
	Feature      *string `json:"feature,omitempty"`
	UserID       *string `json:"user_id,omitempty"`
	CourseID     *string `json:"course_id,omitempty"`
	DefinitionID int64   `json:"-"`
}

// Key is the full uniqueness key of a Record.
type Key struct {
	Scope    Scope
	Feature  *string
	CourseID *string
	UserID   *string
}

func (r *Record) Key() Key {
	return Key{Scope: r.Scope, Feature: r.Feature, CourseID: r.CourseID, UserID: r.UserID}
}

func (k Key) Equal(other Key) bool {
	return k.Scope == other.Scope &&
		strPtrEqual(k.Feature, other.Feature) &&
		strPtrEqual(k.CourseID, other.CourseID) &&
		strPtrEqual(k.UserID, other.UserID)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
