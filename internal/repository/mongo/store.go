// Package mongo stores each collection in a MongoDB collection of the same
// name, keyed by _id = document id.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/jwalitptl/telehealth-admin/internal/config"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials cfg.URI and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return NewStore(client, cfg.Database), nil
}

func NewStore(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) Find(ctx context.Context, collection string, opts repository.FindOptions) ([]model.Document, error) {
	filter, err := filterDoc(opts.Filters)
	if err != nil {
		return nil, repository.InvalidArgument("find", collection, "%v", err)
	}
	findOpts, err := findOptions(opts)
	if err != nil {
		return nil, repository.InvalidArgument("find", collection, "%v", err)
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, translate("find", collection, "", err)
	}
	defer cur.Close(ctx)

	docs := make([]model.Document, 0)
	for cur.Next(ctx) {
		doc, err := fromRaw(cur.Current)
		if err != nil {
			return nil, repository.NewError(repository.CodeUnknown, "find", collection, "", err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, translate("find", collection, "", err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	raw, err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		return nil, translate("get", collection, id, err)
	}
	doc, err := fromRaw(raw)
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
	record := make(bson.M, len(doc)+1)
	for k, v := range doc {
		record[k] = v
	}
	record["_id"] = id

	_, err := s.db.Collection(collection).InsertOne(ctx, record)
	return translate("insert", collection, id, err)
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields model.Document) (model.Document, error) {
	if len(fields) == 0 {
		return s.Get(ctx, collection, id)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	raw, err := s.db.Collection(collection).
		FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(fields)}, opts).
		Raw()
	if err != nil {
		return nil, translate("merge", collection, id, err)
	}
	doc, err := fromRaw(raw)
	if err != nil {
		return nil, repository.NewError(repository.CodeUnknown, "merge", collection, id, err)
	}
	return doc, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc model.Document) (model.Document, error) {
	record := make(bson.M, len(doc)+1)
	for k, v := range doc {
		record[k] = v
	}
	record["_id"] = id

	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	raw, err := s.db.Collection(collection).
		FindOneAndReplace(ctx, bson.M{"_id": id}, record, opts).
		Raw()
	if err != nil {
		return nil, translate("replace", collection, id, err)
	}
	out, err := fromRaw(raw)
	if err != nil {
		return nil, repository.NewError(repository.CodeUnknown, "replace", collection, id, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate("delete", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return repository.NotFound("delete", collection, id)
	}
	return nil
}

func (s *Store) DeleteWhere(ctx context.Context, collection string, filters []repository.Filter) (int64, error) {
	filter, err := filterDoc(filters)
	if err != nil {
		return 0, repository.InvalidArgument("delete_where", collection, "%v", err)
	}
	res, err := s.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, translate("delete_where", collection, "", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return translate("ping", "", "", s.client.Ping(ctx, readpref.Primary()))
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// filterDoc renders filters as an $and of per-field conditions. A missing
// or null field never matches.
func filterDoc(filters []repository.Filter) (bson.M, error) {
	if len(filters) == 0 {
		return bson.M{}, nil
	}
	clauses := make(bson.A, 0, len(filters))
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		var cond bson.M
		switch f.Op {
		case repository.OpEq:
			cond = bson.M{"$eq": f.Value}
		case repository.OpNe:
			cond = bson.M{"$exists": true, "$nin": bson.A{f.Value, nil}}
		case repository.OpLt:
			cond = bson.M{"$lt": f.Value}
		case repository.OpLte:
			cond = bson.M{"$lte": f.Value}
		case repository.OpGt:
			cond = bson.M{"$gt": f.Value}
		case repository.OpGte:
			cond = bson.M{"$gte": f.Value}
		case repository.OpArrayContains:
			cond = bson.M{"$elemMatch": bson.M{"$eq": f.Value}}
		case repository.OpIn:
			cond = bson.M{"$in": f.Value, "$ne": nil}
		default:
			return nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		clauses = append(clauses, bson.M{f.Field: cond})
	}
	return bson.M{"$and": clauses}, nil
}

func findOptions(opts repository.FindOptions) (*options.FindOptions, error) {
	field := opts.OrderBy
	if field == "" {
		field = repository.DefaultOrderBy
	}
	if !repository.ValidField(field) {
		return nil, fmt.Errorf("invalid sort field %q", field)
	}
	dir := -1
	if opts.Direction == repository.Asc {
		dir = 1
	}
	fo := options.Find().SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}})
	if opts.Offset > 0 {
		fo.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}
	return fo, nil
}

// fromRaw converts a stored document into the plain JSON shape the rest of
// the repository works with.
func fromRaw(raw bson.Raw) (model.Document, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

func translate(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	return repository.NewError(codeOf(err), op, collection, id, err)
}

func codeOf(err error) repository.Code {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.CodeNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.CodeAlreadyExists
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return repository.CodeDeadlineExceeded
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return repository.CodeUnavailable
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		switch {
		case se.HasErrorCode(13), se.HasErrorCode(18):
			return repository.CodePermissionDenied
		case se.HasErrorCode(50):
			return repository.CodeDeadlineExceeded
		}
	}
	return repository.CodeUnknown
}

var _ repository.DocumentStore = (*Store)(nil)
