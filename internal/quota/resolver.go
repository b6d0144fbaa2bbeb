package quota

import (
	"context"
	"fmt"
)

// Resolver answers "what quotas apply here" queries by scope-filtering
// the record store. All list operations treat an empty result as a
// valid answer; only the single-member lookup can fail with
// ErrRecordNotFound.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveGlobal returns the records holding global policy: every scope
// in GlobalScopes with no concrete user or course attached.
func (r *Resolver) ResolveGlobal(ctx context.Context) ([]*Record, error) {
	recs, err := r.store.ListRecords(ctx, RecordFilter{
		Scopes:     GlobalScopes,
		NullUser:   true,
		NullCourse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving global quotas: %w", err)
	}
	return recs, nil
}

// ResolveCourse returns the course-level records for a course. The
// user_id IS NULL filter keeps per-member overrides out of the default
// answer; withMembers additionally unions them in. The two filters are
// disjoint on user_id, so the union never duplicates a record.
func (r *Resolver) ResolveCourse(ctx context.Context, courseID string, withMembers bool) ([]*Record, error) {
	recs, err := r.store.ListRecords(ctx, RecordFilter{
		Scopes:   CourseScopes,
		CourseID: &courseID,
		NullUser: true,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving course quotas: %w", err)
	}

	if withMembers {
		members, err := r.ResolveCourseMembers(ctx, courseID)
		if err != nil {
			return nil, err
		}
		recs = append(recs, members...)
	}
	return recs, nil
}

// ResolveCourseMembers returns all per-member overrides configured for
// a course. An unconfigured course yields an empty list, not an error.
func (r *Resolver) ResolveCourseMembers(ctx context.Context, courseID string) ([]*Record, error) {
	recs, err := r.store.ListRecords(ctx, RecordFilter{
		Scopes:   ScopeSet{ScopeCourseUser},
		CourseID: &courseID,
		HasUser:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving course member quotas: %w", err)
	}
	return recs, nil
}

// ResolveCourseMember returns the one override for a specific course
// member, or ErrRecordNotFound.
func (r *Resolver) ResolveCourseMember(ctx context.Context, courseID, userID string) (*Record, error) {
	recs, err := r.store.ListRecords(ctx, RecordFilter{
		Scopes:   ScopeSet{ScopeCourseUser},
		CourseID: &courseID,
		UserID:   &userID,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving course member quota: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrRecordNotFound
	}
	return recs[0], nil
}
