// Package pg implements the store.Backend contract on PostgreSQL. Each
// registered table is a jsonb document table: id text primary key, doc jsonb.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stayadmin.org/internal/store"
)

type Backend struct {
	db *sql.DB
}

var _ store.Backend = (*Backend)(nil)

// Open connects with tuned pool defaults; adjust under load tests.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Backend{db: db}, nil
}

// NewBackend wraps an existing connection (used by tests with sqlmock).
func NewBackend(db *sql.DB) *Backend { return &Backend{db: db} }

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) DB() *sql.DB { return b.db }

func (b *Backend) List(ctx context.Context, table store.Table, q store.Query) ([]store.Document, int, error) {
	where, args := buildWhere(q.Filter)

	var total int
	countSQL := fmt.Sprintf(`select count(*) from %s%s`, table, where)
	if err := b.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	s := q.Sort.Normalize()
	dir := "asc"
	if s.Order == store.SortDesc {
		dir = "desc"
	}
	orderBy := "id " + dir
	if s.Field != store.IDField {
		args = append(args, s.Field)
		orderBy = fmt.Sprintf("doc->>$%d %s, id asc", len(args), dir)
	}

	p := q.Pagination.Normalize()
	args = append(args, p.PerPage, p.Offset())
	listSQL := fmt.Sprintf(`select id, doc from %s%s order by %s limit $%d offset $%d`,
		table, where, orderBy, len(args)-1, len(args))

	rows, err := b.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (b *Backend) Get(ctx context.Context, table store.Table, id string) (store.Document, error) {
	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`select id, doc from %s where id=$1`, table), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (b *Backend) GetMany(ctx context.Context, table store.Table, ids []string) ([]store.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`select id, doc from %s where id in (%s) order by id`,
		table, strings.Join(placeholders, ","))
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (b *Backend) Insert(ctx context.Context, table store.Table, doc store.Document) (store.Document, error) {
	id, _ := doc[store.IDField].(string)
	if id == "" {
		return nil, store.ErrInvalidIdentifier
	}
	payload, err := marshalFields(doc)
	if err != nil {
		return nil, err
	}
	_, err = b.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(id, doc) values($1, $2)`, table), id, payload)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return store.Clone(doc), nil
}

func (b *Backend) Update(ctx context.Context, table store.Table, id string, fields store.Fields) (store.Document, error) {
	payload, err := marshalFields(store.Document(fields))
	if err != nil {
		return nil, err
	}
	// jsonb || gives exactly the partial-merge semantics: absent fields survive.
	row := b.db.QueryRowContext(ctx,
		fmt.Sprintf(`update %s set doc = doc || $2::jsonb, updated_at = now() where id = $1 returning id, doc`, table),
		id, payload)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (b *Backend) Delete(ctx context.Context, table store.Table, id string) (store.Document, error) {
	row := b.db.QueryRowContext(ctx,
		fmt.Sprintf(`delete from %s where id = $1 returning id, doc`, table), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

// Helpers -----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (store.Document, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	doc := store.Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
	}
	doc[store.IDField] = id
	return doc, nil
}

func marshalFields(doc store.Document) ([]byte, error) {
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == store.IDField {
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}

func buildWhere(filter store.Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	// Stable clause order keeps queries reproducible (and mockable).
	sort.Strings(keys)

	var (
		clauses []string
		args    []any
	)
	for _, k := range keys {
		v := filter[k]
		switch k {
		case store.FilterQueryField:
			args = append(args, "%"+fmt.Sprint(v)+"%")
			clauses = append(clauses, fmt.Sprintf("doc::text ilike $%d", len(args)))
		case store.IDField:
			args = append(args, fmt.Sprint(v))
			clauses = append(clauses, fmt.Sprintf("id = $%d", len(args)))
		default:
			args = append(args, k, fmt.Sprint(v))
			clauses = append(clauses, fmt.Sprintf("doc->>$%d = $%d", len(args)-1, len(args)))
		}
	}
	return " where " + strings.Join(clauses, " and "), args
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
