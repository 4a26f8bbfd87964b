package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
)

// Store keeps every collection in one JSONB table. created_at and
// updated_at are mirrored into columns for ordering.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Find(ctx context.Context, collection string, opts repository.FindOptions) ([]model.Document, error) {
	query, args, err := buildFind(collection, opts)
	if err != nil {
		return nil, repository.InvalidArgument("find", collection, "%v", err)
	}

	var rows []types.JSONText
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, translate("find", collection, "", err)
	}
	docs := make([]model.Document, 0, len(rows))
	for _, raw := range rows {
		doc, err := unmarshalDoc(raw)
		if err != nil {
			return nil, repository.NewError(repository.CodeUnknown, "find", collection, "", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	var raw types.JSONText
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if err := s.db.GetContext(ctx, &raw, query, collection, id); err != nil {
		return nil, translate("get", collection, id, err)
	}
	doc, err := unmarshalDoc(raw)
	if err != nil {
		return nil, repository.NewError(repository.CodeUnknown, "get", collection, id, err)
	}
	return doc, nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc model.Document) error {
	id, _ := doc["id"].(string)
	if id == "" {
		return repository.InvalidArgument("insert", collection, "document has no id")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return repository.InvalidArgument("insert", collection, "%v", err)
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		collection,
		id,
		string(data),
		stampOr(doc["created_at"], now),
		stampOr(doc["updated_at"], now),
	)
	return translate("insert", collection, id, err)
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields model.Document) (model.Document, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, repository.InvalidArgument("merge", collection, "%v", err)
	}
	query := `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = $4
		WHERE collection = $1 AND id = $2
		RETURNING data
	`
	var raw types.JSONText
	err = s.db.GetContext(ctx, &raw, query, collection, id, string(data), stampOr(fields["updated_at"], time.Now().UTC()))
	if err != nil {
		return nil, translate("merge", collection, id, err)
	}
	doc, err := unmarshalDoc(raw)
	if err != nil {
		return nil, repository.NewError(repository.CodeUnknown, "merge", collection, id, err)
	}
	return doc, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc model.Document) (model.Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, repository.InvalidArgument("replace", collection, "%v", err)
	}
	query := `
		UPDATE documents
		SET data = $3::jsonb, updated_at = $4
		WHERE collection = $1 AND id = $2
		RETURNING data
	`
	var raw types.JSONText
	err = s.db.GetContext(ctx, &raw, query, collection, id, string(data), stampOr(doc["updated_at"], time.Now().UTC()))
	if err != nil {
		return nil, translate("replace", collection, id, err)
	}
	out, err := unmarshalDoc(raw)
	if err != nil {
		return nil, repository.NewError(repository.CodeUnknown, "replace", collection, id, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return translate("delete", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate("delete", collection, id, err)
	}
	if n == 0 {
		return repository.NotFound("delete", collection, id)
	}
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, collection string, filters []repository.Filter) (int64, error) {
	b := &builder{}
	where, err := b.where(collection, filters)
	if err != nil {
		return 0, repository.InvalidArgument("delete_where", collection, "%v", err)
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE "+where, b.args...)
	if err != nil {
		return 0, translate("delete_where", collection, "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate("delete_where", collection, "", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return translate("ping", "", "", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// builder accumulates positional arguments.
type builder struct {
	args []interface{}
}

func (b *builder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) path(field string) string {
	return "data #> " + b.arg(pq.Array(strings.Split(field, "."))) + "::text[]"
}

func (b *builder) jsonArg(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return b.arg(string(data)) + "::jsonb", nil
}

func (b *builder) where(collection string, filters []repository.Filter) (string, error) {
	clauses := []string{"collection = " + b.arg(collection)}
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return "", err
		}
		clause, err := b.filter(f)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), nil
}

// filter renders one condition. A missing or null field never matches.
func (b *builder) filter(f repository.Filter) (string, error) {
	path := b.path(f.Field)
	present := fmt.Sprintf("COALESCE(jsonb_typeof(%s), 'null') <> 'null'", path)
	value, err := b.jsonArg(f.Value)
	if err != nil {
		return "", err
	}

	switch f.Op {
	case repository.OpEq:
		return fmt.Sprintf("(%s = %s)", path, value), nil
	case repository.OpNe:
		return fmt.Sprintf("(%s AND %s <> %s)", present, path, value), nil
	case repository.OpLt, repository.OpLte, repository.OpGt, repository.OpGte:
		return fmt.Sprintf("(jsonb_typeof(%s) = jsonb_typeof(%s) AND %s %s %s)", path, value, path, f.Op, value), nil
	case repository.OpArrayContains:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND %s @> jsonb_build_array(%s))", path, path, value), nil
	case repository.OpIn:
		return fmt.Sprintf("(%s AND %s @> jsonb_build_array(%s))", present, value, path), nil
	}
	return "", fmt.Errorf("unsupported operator %q", f.Op)
}

func (b *builder) orderBy(field string, dir repository.Direction) string {
	var expr string
	switch field {
	case "created_at", "updated_at":
		expr = field
	default:
		expr = b.path(field)
	}
	if dir == repository.Asc {
		return expr + " ASC NULLS FIRST, id ASC"
	}
	return expr + " DESC NULLS LAST, id ASC"
}

func buildFind(collection string, opts repository.FindOptions) (string, []interface{}, error) {
	b := &builder{}
	where, err := b.where(collection, opts.Filters)
	if err != nil {
		return "", nil, err
	}
	orderField := opts.OrderBy
	if orderField == "" {
		orderField = repository.DefaultOrderBy
	}
	if !repository.ValidField(orderField) {
		return "", nil, fmt.Errorf("invalid sort field %q", orderField)
	}

	var sb strings.Builder
	sb.WriteString("SELECT data FROM documents WHERE ")
	sb.WriteString(where)
	sb.WriteString(" ORDER BY ")
	sb.WriteString(b.orderBy(orderField, opts.Direction))
	if opts.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(opts.Limit))
	}
	if opts.Offset > 0 {
		sb.WriteString(" OFFSET " + b.arg(opts.Offset))
	}
	return sb.String(), b.args, nil
}

func unmarshalDoc(raw types.JSONText) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// stampOr parses a document timestamp, falling back to def.
func stampOr(v interface{}, def time.Time) time.Time {
	s, ok := v.(string)
	if !ok {
		return def
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return def
	}
	return t
}

var _ repository.DocumentStore = (*Store)(nil)
