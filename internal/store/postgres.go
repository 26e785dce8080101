package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// numericPattern guards text-to-number casts in aggregates so that
// non-numeric values are skipped instead of failing the query.
const numericPattern = `^-?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?$`

// PGXQuerier is the subset of pgxpool.Pool used by Postgres.
type PGXQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres stores every collection in a single JSONB "documents" table keyed
// by (collection, id).
type Postgres struct {
	db  PGXQuerier
	now func() time.Time
}

// NewPostgres returns a document client over db.
func NewPostgres(db PGXQuerier) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// FindOne implements Client.
func (p *Postgres) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	docs, err := p.FindMany(ctx, collection, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FindMany implements Client.
func (p *Postgres) FindMany(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error) {
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return nil, err
	}
	sql := "SELECT data FROM documents WHERE " + where + orderClause(opts.SortBy, &args) + pageClause(opts)
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find %s: %w", collection, err)
	}
	defer rows.Close()
	out := make([]Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", collection, err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s: %w", collection, err)
	}
	return out, nil
}

// Create implements Client.
func (p *Postgres) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	return p.insert(ctx, p.db, collection, doc)
}

// CreateMany inserts every document inside one transaction.
func (p *Postgres) CreateMany(ctx context.Context, collection string, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, doc := range docs {
		if _, err := p.insert(ctx, tx, collection, doc); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return len(docs), nil
}

// Update implements Client by merging set into every matching document.
func (p *Postgres) Update(ctx context.Context, collection string, filter Filter, set Document) (int64, error) {
	ns, err := normalizeDocument(set)
	if err != nil {
		return 0, err
	}
	delete(ns, IDField)
	ns["updatedAt"] = p.now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(ns)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return 0, err
	}
	args = append(args, payload)
	sql := fmt.Sprintf("UPDATE documents SET data = data || $%d::jsonb, updated_at = now() WHERE %s", len(args), where)
	tag, err := p.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, translateError(collection, err)
	}
	return tag.RowsAffected(), nil
}

// Upsert implements Client. The matching row is locked for the duration of the merge.
func (p *Postgres) Upsert(ctx context.Context, collection string, filter Filter, doc Document) (Document, error) {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	nd, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(collection, nf)
	if err != nil {
		return nil, err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, "SELECT id FROM documents WHERE "+where+" ORDER BY created_at, id LIMIT 1 FOR UPDATE", args...).Scan(&id)
	var out Document
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		merged := nd.clone()
		for k, v := range nf {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
		out, err = p.insert(ctx, tx, collection, merged)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("store: upsert lookup %s: %w", collection, err)
	default:
		delete(nd, IDField)
		nd["updatedAt"] = p.now().UTC().Format(time.RFC3339Nano)
		payload, err := json.Marshal(nd)
		if err != nil {
			return nil, err
		}
		var raw []byte
		err = tx.QueryRow(ctx,
			"UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2 RETURNING data",
			collection, id, payload).Scan(&raw)
		if err != nil {
			return nil, translateError(collection, err)
		}
		if out, err = decodeDocument(raw); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return out, nil
}

// Delete implements Client.
func (p *Postgres) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return 0, err
	}
	tag, err := p.db.Exec(ctx, "DELETE FROM documents WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete %s: %w", collection, err)
	}
	return tag.RowsAffected(), nil
}

// Count implements Client.
func (p *Postgres) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := p.db.QueryRow(ctx, "SELECT count(*) FROM documents WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", collection, err)
	}
	return n, nil
}

// Aggregate implements Client. Values that are not numeric are skipped and an
// empty set yields zero.
func (p *Postgres) Aggregate(ctx context.Context, collection string, filter Filter, agg Aggregation) (float64, error) {
	sql, args, err := buildAggregate(collection, filter, agg)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := p.db.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("store: aggregate %s: %w", collection, err)
	}
	return v, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *Postgres) insert(ctx context.Context, q rowQuerier, collection string, doc Document) (Document, error) {
	nd, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	stamp(nd, p.now())
	payload, err := json.Marshal(nd)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = q.QueryRow(ctx,
		"INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3::jsonb, now(), now()) RETURNING data",
		collection, nd[IDField], payload).Scan(&raw)
	if err != nil {
		return nil, translateError(collection, err)
	}
	return decodeDocument(raw)
}

// buildWhere renders filter as a containment predicate. Filter fields with a
// nil value match documents where the field is absent or JSON null.
func buildWhere(collection string, filter Filter) (string, []any, error) {
	nf, err := normalizeFilter(filter)
	if err != nil {
		return "", nil, err
	}
	args := []any{collection}
	clauses := []string{"collection = $1"}

	contained := map[string]any{}
	keys := make([]string, 0, len(nf))
	for k := range nf {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if nf[k] == nil {
			args = append(args, k)
			n := len(args)
			clauses = append(clauses, fmt.Sprintf("(data->$%d IS NULL OR data->$%d = 'null'::jsonb)", n, n))
			continue
		}
		contained[k] = nf[k]
	}
	if len(contained) > 0 {
		payload, err := json.Marshal(contained)
		if err != nil {
			return "", nil, err
		}
		args = append(args, payload)
		clauses = append(clauses, fmt.Sprintf("data @> $%d::jsonb", len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func orderClause(sortBy string, args *[]any) string {
	sortBy = strings.TrimSpace(sortBy)
	if sortBy == "" {
		return " ORDER BY created_at, id"
	}
	dir := "ASC"
	if strings.HasPrefix(sortBy, "-") {
		dir = "DESC"
		sortBy = strings.TrimPrefix(sortBy, "-")
	}
	*args = append(*args, sortBy)
	return fmt.Sprintf(" ORDER BY data->$%d %s, created_at, id", len(*args), dir)
}

func pageClause(opts FindOptions) string {
	var b strings.Builder
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(opts.Offset))
	}
	return b.String()
}

var aggregateFuncs = map[AggregateOp]string{
	AggSum: "SUM",
	AggAvg: "AVG",
	AggMin: "MIN",
	AggMax: "MAX",
}

func buildAggregate(collection string, filter Filter, agg Aggregation) (string, []any, error) {
	if err := agg.Validate(); err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return "", nil, err
	}
	if agg.Op == AggCount {
		return "SELECT count(*)::float8 FROM documents WHERE " + where, args, nil
	}
	fn := aggregateFuncs[agg.Op]
	args = append(args, agg.Field)
	n := len(args)
	sql := fmt.Sprintf(
		"SELECT COALESCE(%s((data->>$%d)::float8), 0)::float8 FROM documents WHERE %s AND jsonb_typeof(data->$%d) IN ('number', 'string') AND (data->>$%d) ~ '%s'",
		fn, n, where, n, n, numericPattern)
	return sql, args, nil
}

func decodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return doc, nil
}

func translateError(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s (%s)", ErrDuplicate, collection, pgErr.ConstraintName)
	}
	return fmt.Errorf("store: write %s: %w", collection, err)
}
