package mongo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jwalitptl/telehealth-admin/internal/repository"
)

func TestFilterDoc(t *testing.T) {
	got, err := filterDoc(nil)
	require.NoError(t, err)
	assert.Equal(t, bson.M{}, got)

	got, err = filterDoc([]repository.Filter{
		{Field: "status", Op: repository.OpEq, Value: "active"},
		{Field: "age", Op: repository.OpGte, Value: 18.0},
		{Field: "tags", Op: repository.OpArrayContains, Value: "vip"},
		{Field: "address.state", Op: repository.OpIn, Value: []interface{}{"CA", "NY"}},
		{Field: "gender", Op: repository.OpNe, Value: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$and": bson.A{
		bson.M{"status": bson.M{"$eq": "active"}},
		bson.M{"age": bson.M{"$gte": 18.0}},
		bson.M{"tags": bson.M{"$elemMatch": bson.M{"$eq": "vip"}}},
		bson.M{"address.state": bson.M{"$in": []interface{}{"CA", "NY"}, "$ne": nil}},
		bson.M{"gender": bson.M{"$exists": true, "$nin": bson.A{"x", nil}}},
	}}, got)
}

func TestFilterDocRejectsBadFilters(t *testing.T) {
	_, err := filterDoc([]repository.Filter{{Field: "$where", Op: repository.OpEq, Value: 1}})
	assert.Error(t, err)

	_, err = filterDoc([]repository.Filter{{Field: "status", Op: "regex", Value: ".*"}})
	assert.Error(t, err)
}

func TestFindOptions(t *testing.T) {
	fo, err := findOptions(repository.FindOptions{OrderBy: "last_name", Direction: repository.Asc, Offset: 20, Limit: 11})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "last_name", Value: 1}, {Key: "_id", Value: 1}}, fo.Sort)
	require.NotNil(t, fo.Skip)
	assert.EqualValues(t, 20, *fo.Skip)
	require.NotNil(t, fo.Limit)
	assert.EqualValues(t, 11, *fo.Limit)

	fo, err = findOptions(repository.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}, fo.Sort)
	assert.Nil(t, fo.Skip)

	_, err = findOptions(repository.FindOptions{OrderBy: "a b"})
	assert.Error(t, err)
}

func TestFromRaw(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":        "p1",
		"id":         "p1",
		"first_name": "Ada",
		"visits":     int32(3),
		"tags":       bson.A{"a", "b"},
		"address":    bson.M{"city": "Austin"},
	})
	require.NoError(t, err)

	doc, err := fromRaw(raw)
	require.NoError(t, err)
	assert.NotContains(t, doc, "_id")
	assert.Equal(t, "p1", doc["id"])
	assert.Equal(t, "Ada", doc["first_name"])
	assert.Equal(t, float64(3), doc["visits"])
	assert.Equal(t, []interface{}{"a", "b"}, doc["tags"])
	assert.Equal(t, map[string]interface{}{"city": "Austin"}, doc["address"])
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, repository.CodeNotFound, codeOf(mongo.ErrNoDocuments))
	assert.Equal(t, repository.CodeNotFound, codeOf(fmt.Errorf("x: %w", mongo.ErrNoDocuments)))
	assert.Equal(t, repository.CodeDeadlineExceeded, codeOf(context.DeadlineExceeded))
	assert.Equal(t, repository.CodeUnavailable, codeOf(mongo.ErrClientDisconnected))
	assert.Equal(t, repository.CodeAlreadyExists, codeOf(mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000, Message: "dup"}},
	}))
	assert.Equal(t, repository.CodePermissionDenied, codeOf(mongo.CommandError{Code: 13, Message: "unauthorized"}))
	assert.Equal(t, repository.CodeDeadlineExceeded, codeOf(mongo.CommandError{Code: 50, Message: "max time"}))
	assert.Equal(t, repository.CodeUnknown, codeOf(fmt.Errorf("boom")))
}
