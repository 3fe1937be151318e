package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	recordsTable    = "records"
	insertBatchSize = 500
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	doc        JSONB   NOT NULL,
	PRIMARY KEY (collection, seq)
);`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps every collection in one JSONB table keyed by
// (collection, seq). ReplaceAll runs in a single transaction, so readers
// never see a half-replaced collection.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the records table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, recordsSchema); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReplaceAll(ctx context.Context, collection string, docs []Document) error {
	if err := validateCollection(collection); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin replace of %s: %w", collection, err)
	}
	defer tx.Rollback(ctx)

	deleteSQL, args, err := psql.Delete(recordsTable).Where(sq.Eq{"collection": collection}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	tag, err := tx.Exec(ctx, deleteSQL, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", collection, err)
	}

	for start := 0; start < len(docs); start += insertBatchSize {
		end := min(start+insertBatchSize, len(docs))
		insertSQL, args, err := buildInsert(collection, start, docs[start:end])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", collection, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace of %s: %w", collection, err)
	}
	slog.Info("Replaced Postgres collection", "collection", collection, "deleted", tag.RowsAffected(), "created", len(docs))
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(collection, q.Filters, q.Sort); err != nil {
		return nil, err
	}
	query, args, err := buildFind(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[Document])
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string, filters []Filter) (int, error) {
	if err := validateQuery(collection, filters, nil); err != nil {
		return 0, err
	}
	query, args, err := buildCount(collection, filters)
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

func buildInsert(collection string, offset int, docs []Document) (string, []any, error) {
	builder := psql.Insert(recordsTable).Columns("collection", "seq", "doc")
	for i, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode document %d: %w", offset+i, err)
		}
		builder = builder.Values(collection, offset+i, string(data))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build insert query: %w", err)
	}
	return query, args, nil
}

func buildFind(collection string, q Query) (string, []any, error) {
	builder := psql.Select("doc").From(recordsTable).Where(sq.Eq{"collection": collection})
	for _, f := range q.Filters {
		cond, err := filterCondition(f)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(cond)
	}
	if q.Sort != nil {
		dir := "ASC"
		if q.Sort.Direction == Desc {
			dir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("doc->'%s' %s", q.Sort.Field, dir))
	}
	builder = builder.OrderBy("seq ASC")
	if q.Skip > 0 {
		builder = builder.Offset(uint64(q.Skip))
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build find query: %w", err)
	}
	return query, args, nil
}

func buildCount(collection string, filters []Filter) (string, []any, error) {
	builder := psql.Select("COUNT(*)").From(recordsTable).Where(sq.Eq{"collection": collection})
	for _, f := range filters {
		cond, err := filterCondition(f)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(cond)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build count query: %w", err)
	}
	return query, args, nil
}

// filterCondition renders f against the doc column. Field names are
// validated before they reach here and are safe to interpolate.
func filterCondition(f Filter) (sq.Sqlizer, error) {
	switch f.Op {
	case OpEq:
		data, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter value for %s: %w", f.Field, err)
		}
		return sq.Expr(fmt.Sprintf("doc->'%s' = ?::jsonb", f.Field), string(data)), nil
	case OpLTE:
		return sq.Expr(fmt.Sprintf(
			"(CASE WHEN jsonb_typeof(doc->'%[1]s') = 'number' THEN (doc->>'%[1]s')::numeric <= ? ELSE false END)",
			f.Field), f.Value), nil
	case OpPrefix:
		prefix, _ := f.Value.(string)
		return sq.Expr(fmt.Sprintf(
			`(jsonb_typeof(doc->'%[1]s') = 'string' AND doc->>'%[1]s' LIKE ? ESCAPE '\')`,
			f.Field), escapeLike(prefix)+"%"), nil
	case OpNotNull:
		return sq.Expr(fmt.Sprintf("COALESCE(jsonb_typeof(doc->'%s'), 'null') <> 'null'", f.Field)), nil
	default:
		return nil, fmt.Errorf("unsupported filter op %s on %s", f.Op, f.Field)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
