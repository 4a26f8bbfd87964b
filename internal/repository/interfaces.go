package repository

import (
	"context"

	"github.com/jwalitptl/telehealth-admin/internal/model"
)

// DocumentStore is the backend contract. Documents are JSON objects keyed
// by their "id" field inside a named collection.
type DocumentStore interface {
	Find(ctx context.Context, collection string, opts FindOptions) ([]model.Document, error)
	Get(ctx context.Context, collection, id string) (model.Document, error)
	Insert(ctx context.Context, collection string, doc model.Document) error
	// Merge shallow-merges fields into the stored document and returns the
	// result.
	Merge(ctx context.Context, collection, id string, fields model.Document) (model.Document, error)
	// Replace overwrites the stored document with doc. Keys missing from doc
	// are removed.
	Replace(ctx context.Context, collection, id string, doc model.Document) (model.Document, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteWhere(ctx context.Context, collection string, filters []Filter) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Reader is the read capability of a typed collection.
type Reader[T any] interface {
	GetAll(ctx context.Context, q Query) (*Page[T], error)
	GetByID(ctx context.Context, id string) (*T, error)
}

// Creator appends new documents.
type Creator[T any] interface {
	Create(ctx context.Context, item *T) (*T, error)
}

// Writer is the full mutation capability.
type Writer[T any] interface {
	Creator[T]
	Update(ctx context.Context, id string, fields model.Document) (*T, error)
	Replace(ctx context.Context, id string, item *T) (*T, error)
	Delete(ctx context.Context, id string) error
}

// Repository is read and write access to one entity collection.
type Repository[T any] interface {
	Reader[T]
	Writer[T]
}

// AppendOnly is handed to components that may only add and read records,
// such as the audit log.
type AppendOnly[T any] interface {
	Reader[T]
	Creator[T]
}
