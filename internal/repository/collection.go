package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
	"github.com/jwalitptl/telehealth-admin/pkg/values"
)

// TimestampLayout is fixed width so stored timestamps also sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// zeroStamp is how an unset time.Time encodes.
const zeroStamp = "0001-01-01T00:00:00Z"

// Collection is the typed Repository over a DocumentStore. T is any struct
// that embeds model.Base (or otherwise carries id/created_at/updated_at).
type Collection[T any] struct {
	store   DocumentStore
	name    string
	now     func() time.Time
	newID   func() string
	metrics *metrics.Metrics
}

type CollectionOption func(*collectionOptions)

type collectionOptions struct {
	now     func() time.Time
	newID   func() string
	metrics *metrics.Metrics
}

// WithClock overrides time.Now for stamping.
func WithClock(now func() time.Time) CollectionOption {
	return func(o *collectionOptions) { o.now = now }
}

// WithIDGenerator overrides UUID generation.
func WithIDGenerator(fn func() string) CollectionOption {
	return func(o *collectionOptions) { o.newID = fn }
}

func WithMetrics(m *metrics.Metrics) CollectionOption {
	return func(o *collectionOptions) { o.metrics = m }
}

func NewCollection[T any](store DocumentStore, name string, opts ...CollectionOption) *Collection[T] {
	o := collectionOptions{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{store: store, name: name, now: o.now, newID: o.newID, metrics: o.metrics}
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) GetAll(ctx context.Context, q Query) (page *Page[T], err error) {
	defer c.observe("get_all", time.Now(), &err)

	offset, err := DecodeCursor(q.Cursor)
	if err != nil {
		return nil, InvalidArgument("get_all", c.name, "%v", err)
	}
	for _, f := range q.Filters {
		if err := f.Validate(); err != nil {
			return nil, InvalidArgument("get_all", c.name, "%v", err)
		}
	}
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = DefaultOrderBy
	}
	if !ValidField(orderBy) {
		return nil, InvalidArgument("get_all", c.name, "invalid sort field %q", orderBy)
	}
	dir := q.Direction
	switch dir {
	case "":
		dir = Desc
	case Asc, Desc:
	default:
		return nil, InvalidArgument("get_all", c.name, "invalid sort direction %q", dir)
	}
	limit := NormalizePageSize(q.PageSize)

	docs, err := c.store.Find(ctx, c.name, FindOptions{
		Filters:   q.Filters,
		OrderBy:   orderBy,
		Direction: dir,
		Offset:    offset,
		Limit:     limit + 1,
	})
	if err != nil {
		return nil, err
	}

	page = &Page[T]{Items: make([]T, 0, len(docs))}
	if len(docs) > limit {
		docs = docs[:limit]
		page.HasMore = true
		page.NextCursor = EncodeCursor(offset + limit)
	}
	for _, doc := range docs {
		item, err := decode[T](doc)
		if err != nil {
			return nil, NewError(CodeUnknown, "get_all", c.name, fmt.Sprint(doc["id"]), err)
		}
		page.Items = append(page.Items, *item)
	}
	return page, nil
}

func (c *Collection[T]) GetByID(ctx context.Context, id string) (item *T, err error) {
	defer c.observe("get", time.Now(), &err)

	doc, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	item, err = decode[T](doc)
	if err != nil {
		return nil, NewError(CodeUnknown, "get", c.name, id, err)
	}
	return item, nil
}

// Create assigns an id when none is set and stamps both timestamps.
func (c *Collection[T]) Create(ctx context.Context, in *T) (item *T, err error) {
	defer c.observe("create", time.Now(), &err)

	doc, err := Encode(in)
	if err != nil {
		return nil, InvalidArgument("create", c.name, "%v", err)
	}
	id, _ := doc["id"].(string)
	if id == "" {
		id = c.newID()
	}
	stamp := c.now().UTC().Format(TimestampLayout)
	doc["id"] = id
	doc["created_at"] = stamp
	doc["updated_at"] = stamp

	if err := c.store.Insert(ctx, c.name, doc); err != nil {
		return nil, err
	}
	item, err = decode[T](doc)
	if err != nil {
		return nil, NewError(CodeUnknown, "create", c.name, id, err)
	}
	return item, nil
}

// Update merges fields into the document and restamps updated_at. The id and
// created_at fields can't be changed.
func (c *Collection[T]) Update(ctx context.Context, id string, fields model.Document) (item *T, err error) {
	defer c.observe("update", time.Now(), &err)

	patch := values.CloneMap(fields)
	if patch == nil {
		patch = model.Document{}
	}
	delete(patch, "id")
	delete(patch, "created_at")
	patch["updated_at"] = c.now().UTC().Format(TimestampLayout)

	doc, err := c.store.Merge(ctx, c.name, id, patch)
	if err != nil {
		return nil, err
	}
	item, err = decode[T](doc)
	if err != nil {
		return nil, NewError(CodeUnknown, "update", c.name, id, err)
	}
	return item, nil
}

// Replace stores item as the whole document under id and restamps
// updated_at. Fields left empty in item are cleared. created_at is taken
// from the stored document when item carries none.
func (c *Collection[T]) Replace(ctx context.Context, id string, in *T) (item *T, err error) {
	defer c.observe("replace", time.Now(), &err)

	doc, err := Encode(in)
	if err != nil {
		return nil, InvalidArgument("replace", c.name, "%v", err)
	}
	created, _ := doc["created_at"].(string)
	if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil && created != zeroStamp {
		doc["created_at"] = t.UTC().Format(TimestampLayout)
	} else {
		current, err := c.store.Get(ctx, c.name, id)
		if err != nil {
			return nil, err
		}
		doc["created_at"] = current["created_at"]
	}
	doc["id"] = id
	doc["updated_at"] = c.now().UTC().Format(TimestampLayout)

	stored, err := c.store.Replace(ctx, c.name, id, doc)
	if err != nil {
		return nil, err
	}
	item, err = decode[T](stored)
	if err != nil {
		return nil, NewError(CodeUnknown, "replace", c.name, id, err)
	}
	return item, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) (err error) {
	defer c.observe("delete", time.Now(), &err)
	return c.store.Delete(ctx, c.name, id)
}

// DeleteWhere removes every matching document. It is not part of
// Repository and is used for retention only.
func (c *Collection[T]) DeleteWhere(ctx context.Context, filters []Filter) (n int64, err error) {
	defer c.observe("delete_where", time.Now(), &err)
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return 0, InvalidArgument("delete_where", c.name, "%v", err)
		}
	}
	return c.store.DeleteWhere(ctx, c.name, filters)
}

func (c *Collection[T]) observe(op string, start time.Time, err *error) {
	c.metrics.ObserveStore(c.name, op, *err, time.Since(start))
}

// Encode converts a typed value into a document via its JSON form.
func Encode(v interface{}) (model.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("value does not encode to an object")
	}
	return doc, nil
}

func decode[T any](doc model.Document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

var (
	_ Repository[model.Patient]  = (*Collection[model.Patient])(nil)
	_ AppendOnly[model.AuditLog] = (*Collection[model.AuditLog])(nil)
)
