package quota

import (
	"context"
)

// memStore is an in-memory TxStore for unit tests. WithTx snapshots
// the record slice and restores it when fn fails, mimicking rollback.
type memStore struct {
	defs   []*Definition
	recs   []*Record
	nextID int64

	// beforeInsert, when set, runs right before InsertRecord's
	// duplicate check. Tests use it to simulate a racing writer.
	beforeInsert func(m *memStore)
}

func newMemStore(defs ...*Definition) *memStore {
	m := &memStore{nextID: 1}
	for _, def := range defs {
		d := *def
		d.ID = m.nextID
		m.nextID++
		m.defs = append(m.defs, &d)
	}
	return m
}

func (m *memStore) WithTx(ctx context.Context, fn func(Store) error) error {
	snapshot := make([]*Record, len(m.recs))
	for i, rec := range m.recs {
		c := *rec
		snapshot[i] = &c
	}
	if err := fn(m); err != nil {
		m.recs = snapshot
		return err
	}
	return nil
}

func (m *memStore) FindDefinition(ctx context.Context, scope Scope, feature *string) (*Definition, error) {
	for _, def := range m.defs {
		if def.Scope == scope && strPtrEqual(def.Feature, feature) {
			d := *def
			return &d, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListDefinitions(ctx context.Context) ([]*Definition, error) {
	out := make([]*Definition, 0, len(m.defs))
	for _, def := range m.defs {
		d := *def
		out = append(out, &d)
	}
	return out, nil
}

func (m *memStore) FindRecord(ctx context.Context, key Key) (*Record, error) {
	for _, rec := range m.recs {
		if rec.Key().Equal(key) {
			c := *rec
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertRecord(ctx context.Context, rec *Record) (*Record, error) {
	if m.beforeInsert != nil {
		hook := m.beforeInsert
		m.beforeInsert = nil
		hook(m)
	}
	for _, existing := range m.recs {
		if existing.Key().Equal(rec.Key()) {
			return nil, ErrDuplicateKey
		}
	}
	c := *rec
	c.ID = m.nextID
	m.nextID++
	m.recs = append(m.recs, &c)
	out := c
	return &out, nil
}

func (m *memStore) UpdateRecordLimit(ctx context.Context, id int64, limit int) (*Record, error) {
	for _, rec := range m.recs {
		if rec.ID == id {
			rec.Limit = limit
			c := *rec
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) ListRecords(ctx context.Context, filter RecordFilter) ([]*Record, error) {
	var out []*Record
	for _, rec := range m.recs {
		if len(filter.Scopes) > 0 && !filter.Scopes.Contains(rec.Scope) {
			continue
		}
		if filter.CourseID != nil && (rec.CourseID == nil || *rec.CourseID != *filter.CourseID) {
			continue
		}
		if filter.UserID != nil && (rec.UserID == nil || *rec.UserID != *filter.UserID) {
			continue
		}
		if filter.NullCourse && rec.CourseID != nil {
			continue
		}
		if filter.NullUser && rec.UserID != nil {
			continue
		}
		if filter.HasUser && rec.UserID == nil {
			continue
		}
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

// addRecord seeds a record directly, bypassing the upsert engine.
func (m *memStore) addRecord(rec Record) *Record {
	rec.ID = m.nextID
	m.nextID++
	m.recs = append(m.recs, &rec)
	return &rec
}

func strp(s string) *string { return &s }
