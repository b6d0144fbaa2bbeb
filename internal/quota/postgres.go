package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// same query methods run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements TxStore on top of a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// WithTx runs fn with a Store bound to a single transaction. The
// transaction commits only if fn returns nil.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning quota tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&PostgresStore{pool: s.pool, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing quota tx: %w", err)
	}
	return nil
}

const definitionColumns = `id, type, description, reset_interval, scope, feature`

func (s *PostgresStore) FindDefinition(ctx context.Context, scope Scope, feature *string) (*Definition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM quota_definitions
		WHERE scope = $1 AND feature IS NOT DISTINCT FROM $2`

	def := &Definition{}
	err := s.q.QueryRow(ctx, query, scope, feature).Scan(
		&def.ID, &def.Type, &def.Description, &def.ResetInterval, &def.Scope, &def.Feature)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying quota definition: %w", err)
	}
	return def, nil
}

func (s *PostgresStore) ListDefinitions(ctx context.Context) ([]*Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM quota_definitions ORDER BY id`

	rows, err := s.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing quota definitions: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def := &Definition{}
		if err := rows.Scan(&def.ID, &def.Type, &def.Description, &def.ResetInterval, &def.Scope, &def.Feature); err != nil {
			return nil, fmt.Errorf("scanning quota definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

const recordColumns = `id, "limit", used, type, scope, feature, user_id, course_id, quota_definition_id`

func (s *PostgresStore) FindRecord(ctx context.Context, key Key) (*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM quota_records
		WHERE scope = $1
		  AND feature IS NOT DISTINCT FROM $2
		  AND user_id IS NOT DISTINCT FROM $3
		  AND course_id IS NOT DISTINCT FROM $4`

	rec := &Record{}
	err := s.q.QueryRow(ctx, query, key.Scope, key.Feature, key.UserID, key.CourseID).Scan(
		&rec.ID, &rec.Limit, &rec.Used, &rec.Type, &rec.Scope,
		&rec.Feature, &rec.UserID, &rec.CourseID, &rec.DefinitionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying quota record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) InsertRecord(ctx context.Context, rec *Record) (*Record, error) {
	// ON CONFLICT DO NOTHING reports a racing insert as zero returned
	// rows instead of a unique violation, which would abort the
	// surrounding transaction and make retry-as-update impossible.
	query := `
		INSERT INTO quota_records ("limit", used, type, scope, feature, user_id, course_id, quota_definition_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT quota_records_key_uq DO NOTHING
		RETURNING ` + recordColumns

	out := &Record{}
	err := s.q.QueryRow(ctx, query,
		rec.Limit, rec.Used, rec.Type, rec.Scope,
		rec.Feature, rec.UserID, rec.CourseID, rec.DefinitionID,
	).Scan(
		&out.ID, &out.Limit, &out.Used, &out.Type, &out.Scope,
		&out.Feature, &out.UserID, &out.CourseID, &out.DefinitionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuplicateKey
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("inserting quota record: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateRecordLimit(ctx context.Context, id int64, limit int) (*Record, error) {
	query := `
		UPDATE quota_records
		SET "limit" = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + recordColumns

	out := &Record{}
	err := s.q.QueryRow(ctx, query, id, limit).Scan(
		&out.ID, &out.Limit, &out.Used, &out.Type, &out.Scope,
		&out.Feature, &out.UserID, &out.CourseID, &out.DefinitionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating quota record limit: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]*Record, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Scopes) > 0 {
		scopes := make([]string, len(filter.Scopes))
		for i, sc := range filter.Scopes {
			scopes[i] = string(sc)
		}
		where = append(where, "scope = ANY("+arg(scopes)+")")
	}
	if filter.CourseID != nil {
		where = append(where, "course_id = "+arg(*filter.CourseID))
	}
	if filter.UserID != nil {
		where = append(where, "user_id = "+arg(*filter.UserID))
	}
	if filter.NullCourse {
		where = append(where, "course_id IS NULL")
	}
	if filter.NullUser {
		where = append(where, "user_id IS NULL")
	}
	if filter.HasUser {
		where = append(where, "user_id IS NOT NULL")
	}

	query := `SELECT ` + recordColumns + ` FROM quota_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing quota records: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec := &Record{}
		err := rows.Scan(
			&rec.ID, &rec.Limit, &rec.Used, &rec.Type, &rec.Scope,
			&rec.Feature, &rec.UserID, &rec.CourseID, &rec.DefinitionID)
		if err != nil {
			return nil, fmt.Errorf("scanning quota record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
