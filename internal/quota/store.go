package quota

import "context"

// RecordFilter selects records by scope set and key columns. Nil
// pointer fields are not filtered on; the Null*/HasUser flags add
// IS NULL / IS NOT NULL constraints.
type RecordFilter struct {
	Scopes     ScopeSet
	CourseID   *string
	UserID     *string
	NullCourse bool
	NullUser   bool
	HasUser    bool
}

// Store is the persistence surface the resolver and upsert engine
// require. Lookups that find nothing return (nil, nil); only
// InsertRecord reports ErrDuplicateKey.
type Store interface {
	FindDefinition(ctx context.Context, scope Scope, feature *string) (*Definition, error)
	ListDefinitions(ctx context.Context) ([]*Definition, error)

	FindRecord(ctx context.Context, key Key) (*Record, error)
	InsertRecord(ctx context.Context, rec *Record) (*Record, error)
	UpdateRecordLimit(ctx context.Context, id int64, limit int) (*Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]*Record, error)
}

// TxStore is a Store whose operations can additionally be grouped into
// one atomic transaction. The Store passed to fn sees uncommitted
// writes from earlier steps; returning an error rolls everything back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
