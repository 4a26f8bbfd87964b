// Package memory is an in-process DocumentStore used for development and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/pkg/values"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]model.Document
	// failWith, when set, is returned by every operation.
	failWith error
}

func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]model.Document)}
}

// FailWith makes every subsequent call return err (nil restores normal
// behaviour).
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) Find(ctx context.Context, collection string, opts repository.FindOptions) ([]model.Document, error) {
	if err := s.check(ctx, "find", collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := make([]model.Document, 0)
	for _, doc := range s.collections[collection] {
		if repository.Match(doc, opts.Filters) {
			matched = append(matched, values.CloneMap(doc))
		}
	}
	s.mu.RUnlock()

	repository.SortDocuments(matched, opts.OrderBy, opts.Direction)

	if opts.Offset >= len(matched) {
		return []model.Document{}, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	if err := s.check(ctx, "get", collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, repository.NotFound("get", collection, id)
	}
	return values.CloneMap(doc), nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc model.Document) error {
	if err := s.check(ctx, "insert", collection); err != nil {
		return err
	}
	id, _ := doc["id"].(string)
	if id == "" {
		return repository.InvalidArgument("insert", collection, "document has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]model.Document)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return repository.NewError(repository.CodeAlreadyExists, "insert", collection, id, nil)
	}
	docs[id] = values.CloneMap(doc)
	return nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields model.Document) (model.Document, error) {
	if err := s.check(ctx, "merge", collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, repository.NotFound("merge", collection, id)
	}
	// stored maps are never written in place
	next := values.CloneMap(doc)
	for k, v := range fields {
		next[k] = values.Clone(v)
	}
	s.collections[collection][id] = next
	return values.CloneMap(next), nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc model.Document) (model.Document, error) {
	if err := s.check(ctx, "replace", collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return nil, repository.NotFound("replace", collection, id)
	}
	next := values.CloneMap(doc)
	if next == nil {
		next = model.Document{}
	}
	next["id"] = id
	s.collections[collection][id] = next
	return values.CloneMap(next), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.check(ctx, "delete", collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][id]; !ok {
		return repository.NotFound("delete", collection, id)
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, collection string, filters []repository.Filter) (int64, error) {
	if err := s.check(ctx, "delete_where", collection); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, doc := range s.collections[collection] {
		if repository.Match(doc, filters) {
			delete(s.collections[collection], id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.check(ctx, "ping", "")
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) check(ctx context.Context, op, collection string) error {
	if err := ctx.Err(); err != nil {
		return repository.NewError(repository.CodeDeadlineExceeded, op, collection, "", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failWith
}

var _ repository.DocumentStore = (*Store)(nil)
