package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/toolgrid/quotad/internal/metrics"
)

// Update is one requested limit change. The contextual course/user
// identity is never taken from the update itself; routes fix it via
// UpdateContext.
type Update struct {
	Limit   int
	Scope   Scope
	Feature *string
}

// UpdateContext carries the key columns fixed by the route: both nil
// for top-level updates, course set for course updates, course and
// user set for member updates.
type UpdateContext struct {
	CourseID *string
	UserID   *string
}

// Engine applies quota updates against the record store, enforcing
// scope legality and definition gating. Each call is one atomic
// read-modify-write; batches are all-or-nothing.
type Engine struct {
	store TxStore
}

func NewEngine(store TxStore) *Engine {
	return &Engine{store: store}
}

// Apply upserts a single update inside its own transaction and returns
// the post-update record as read back from the store.
func (e *Engine) Apply(ctx context.Context, legal ScopeSet, uctx UpdateContext, upd Update) (*Record, error) {
	var out *Record
	err := e.store.WithTx(ctx, func(st Store) error {
		rec, err := applyOne(ctx, st, legal, uctx, upd)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		metrics.QuotaUpsertsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.QuotaUpsertsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

// ApplyBatch upserts a sequence of updates in one transaction. The
// first failing item rolls back the whole batch and its error is
// returned untouched.
func (e *Engine) ApplyBatch(ctx context.Context, legal ScopeSet, uctx UpdateContext, upds []Update) ([]*Record, error) {
	out := make([]*Record, 0, len(upds))
	err := e.store.WithTx(ctx, func(st Store) error {
		for _, upd := range upds {
			rec, err := applyOne(ctx, st, legal, uctx, upd)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		metrics.QuotaUpsertsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.QuotaUpsertsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

func applyOne(ctx context.Context, st Store, legal ScopeSet, uctx UpdateContext, upd Update) (*Record, error) {
	if !legal.Contains(upd.Scope) {
		return nil, &InvalidScopeError{Scope: upd.Scope, Legal: legal}
	}

	def, err := st.FindDefinition(ctx, upd.Scope, upd.Feature)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, &DefinitionNotFoundError{Scope: upd.Scope, Feature: upd.Feature}
	}

	// The key repeats scope and feature even though the definition
	// already pins them, so the uniqueness invariant holds without a
	// join against the catalog.
	key := Key{
		Scope:    upd.Scope,
		Feature:  upd.Feature,
		CourseID: uctx.CourseID,
		UserID:   uctx.UserID,
	}

	existing, err := st.FindRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Overwrite the limit in place; used is never touched, so an
		// update cannot reset consumption.
		return st.UpdateRecordLimit(ctx, existing.ID, upd.Limit)
	}

	typ := def.Type
	rec, err := st.InsertRecord(ctx, &Record{
		Limit:        upd.Limit,
		Used:         0,
		Type:         &typ,
		Scope:        upd.Scope,
		Feature:      upd.Feature,
		CourseID:     uctx.CourseID,
		UserID:       uctx.UserID,
		DefinitionID: def.ID,
	})
	if errors.Is(err, ErrDuplicateKey) {
		// A concurrent request created the record between our lookup
		// and insert; the unique key turned the race into a retryable
		// update.
		existing, ferr := st.FindRecord(ctx, key)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, fmt.Errorf("quota record vanished after duplicate key on insert")
		}
		return st.UpdateRecordLimit(ctx, existing.ID, upd.Limit)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
