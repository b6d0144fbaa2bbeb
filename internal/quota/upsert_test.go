package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogStore() *memStore {
	return newMemStore(
		&Definition{Type: "token", Scope: ScopeUser},
		&Definition{Type: "token", Scope: ScopeUser, Feature: strp("gpt-3")},
		&Definition{Type: "token", Scope: ScopeCourse},
		&Definition{Type: "token", Scope: ScopeCourseUser},
	)
}

func TestApply_CreatesRecord(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	rec, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 1000, Scope: ScopeUser})
	require.NoError(t, err)

	assert.Equal(t, 1000, rec.Limit)
	assert.Equal(t, 0, rec.Used)
	assert.Equal(t, "token", *rec.Type)
	assert.Equal(t, ScopeUser, rec.Scope)
	assert.Nil(t, rec.CourseID)
	assert.Nil(t, rec.UserID)
	assert.Equal(t, int64(1), rec.DefinitionID)
	require.Len(t, st.recs, 1)
}

func TestApply_UpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	_, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 1000, Scope: ScopeUser})
	require.NoError(t, err)

	rec, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 500, Scope: ScopeUser})
	require.NoError(t, err)

	assert.Equal(t, 500, rec.Limit)
	require.Len(t, st.recs, 1, "second update must not create a second record")
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	first, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 1000, Scope: ScopeUser})
	require.NoError(t, err)
	second, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 1000, Scope: ScopeUser})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1000, second.Limit)
	require.Len(t, st.recs, 1)
}

func TestApply_PreservesUsed(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	st.addRecord(Record{Limit: 1000, Used: 200, Type: strp("token"), Scope: ScopeUser, DefinitionID: 1})
	e := NewEngine(st)

	rec, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 500, Scope: ScopeUser})
	require.NoError(t, err)

	assert.Equal(t, 500, rec.Limit)
	assert.Equal(t, 200, rec.Used, "a limit update must never reset consumption")
}

func TestApply_FeatureIsPartOfKey(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	_, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 1000, Scope: ScopeUser})
	require.NoError(t, err)
	_, err = e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 2000, Scope: ScopeUser, Feature: strp("gpt-3")})
	require.NoError(t, err)

	require.Len(t, st.recs, 2, "null feature and a concrete feature are distinct keys")
}

func TestApply_RejectsIllegalScope(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	_, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 100, Scope: ScopeCourseUser})

	var scopeErr *InvalidScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, ScopeCourseUser, scopeErr.Scope)
	assert.Contains(t, scopeErr.Error(), "user, course, total")
	assert.Empty(t, st.recs, "rejected update must not write")
}

func TestApply_RejectsUnknownScopeValue(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	_, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 100, Scope: Scope("galaxy")})

	var scopeErr *InvalidScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Empty(t, st.recs)
}

func TestApply_RejectsUnknownDefinition(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	_, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 100, Scope: ScopeTotal})

	var defErr *DefinitionNotFoundError
	require.ErrorAs(t, err, &defErr)
	assert.Equal(t, ScopeTotal, defErr.Scope)
	assert.Empty(t, st.recs, "gated update must not write")
}

func TestApply_ContextKeysComeFromRoute(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	uctx := UpdateContext{CourseID: strp("course-123"), UserID: strp("user-456")}
	rec, err := e.Apply(ctx, MemberScopes, uctx, Update{Limit: 100, Scope: ScopeCourseUser})
	require.NoError(t, err)

	assert.Equal(t, "course-123", *rec.CourseID)
	assert.Equal(t, "user-456", *rec.UserID)
}

func TestApply_DuplicateKeyRaceRetriesAsUpdate(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	// A racing writer lands between the engine's lookup and its insert.
	st.beforeInsert = func(m *memStore) {
		m.addRecord(Record{Limit: 777, Used: 5, Type: strp("token"), Scope: ScopeUser, DefinitionID: 1})
	}
	e := NewEngine(st)

	rec, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, Update{Limit: 1000, Scope: ScopeUser})
	require.NoError(t, err)

	assert.Equal(t, 1000, rec.Limit, "race must resolve to an update of the winner's record")
	assert.Equal(t, 5, rec.Used)
	require.Len(t, st.recs, 1, "race must not duplicate the record")
}

func TestApplyBatch_AppliesAll(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	recs, err := e.ApplyBatch(ctx, GlobalScopes, UpdateContext{}, []Update{
		{Limit: 1000, Scope: ScopeUser},
		{Limit: 2000, Scope: ScopeUser, Feature: strp("gpt-3")},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Len(t, st.recs, 2)
}

func TestApplyBatch_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	_, err := e.ApplyBatch(ctx, GlobalScopes, UpdateContext{}, []Update{
		{Limit: 1000, Scope: ScopeUser},
		{Limit: 500, Scope: ScopeTotal}, // no definition for (total, null)
	})

	var defErr *DefinitionNotFoundError
	require.ErrorAs(t, err, &defErr)
	assert.Empty(t, st.recs, "a failing item must roll back the whole batch")
}

func TestUniqueness_AllStoredKeysDistinct(t *testing.T) {
	ctx := context.Background()
	st := catalogStore()
	e := NewEngine(st)

	updates := []Update{
		{Limit: 1, Scope: ScopeUser},
		{Limit: 2, Scope: ScopeUser},
		{Limit: 3, Scope: ScopeUser, Feature: strp("gpt-3")},
		{Limit: 4, Scope: ScopeUser},
	}
	for _, upd := range updates {
		_, err := e.Apply(ctx, GlobalScopes, UpdateContext{}, upd)
		require.NoError(t, err)
	}

	for i, a := range st.recs {
		for j, b := range st.recs {
			if i != j {
				assert.False(t, a.Key().Equal(b.Key()), "records %d and %d share a key", i, j)
			}
		}
	}
}
