package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/model"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{in: "status:==:active", want: Filter{Field: "status", Op: OpEq, Value: "active"}},
		{in: `status:==:"active"`, want: Filter{Field: "status", Op: OpEq, Value: "active"}},
		{in: "age:>=:18", want: Filter{Field: "age", Op: OpGte, Value: float64(18)}},
		{in: "accepting_patients:==:true", want: Filter{Field: "accepting_patients", Op: OpEq, Value: true}},
		{in: "address.state:in:CA, NY", want: Filter{Field: "address.state", Op: OpIn, Value: []interface{}{"CA", "NY"}}},
		{in: `status:in:["active","pending"]`, want: Filter{Field: "status", Op: OpIn, Value: []interface{}{"active", "pending"}}},
		{in: "note:==:a:b", want: Filter{Field: "note", Op: OpEq, Value: "a:b"}},
		{in: "status", wantErr: true},
		{in: "status:like:x", wantErr: true},
		{in: "bad field:==:x", wantErr: true},
		{in: "tags:array-contains:vip", want: Filter{Field: "tags", Op: OpArrayContains, Value: "vip"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	off, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Equal(t, 0, off)

	off, err = DecodeCursor(EncodeCursor(40))
	require.NoError(t, err)
	assert.Equal(t, 40, off)

	for _, bad := range []string{"!!", "YWJj", EncodeCursor(-1)} {
		_, err := DecodeCursor(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizePageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NormalizePageSize(0))
	assert.Equal(t, DefaultPageSize, NormalizePageSize(-5))
	assert.Equal(t, 7, NormalizePageSize(7))
	assert.Equal(t, MaxPageSize, NormalizePageSize(1000))
}

func TestMatch(t *testing.T) {
	doc := model.Document{
		"status": "active",
		"age":    float64(42),
		"tags":   []interface{}{"vip", "new"},
		"address": map[string]interface{}{
			"state": "CA",
		},
		"note": nil,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq", Filter{Field: "status", Op: OpEq, Value: "active"}, true},
		{"eq int vs float", Filter{Field: "age", Op: OpEq, Value: 42}, true},
		{"ne", Filter{Field: "status", Op: OpNe, Value: "inactive"}, true},
		{"ne missing never matches", Filter{Field: "missing", Op: OpNe, Value: "x"}, false},
		{"ne null never matches", Filter{Field: "note", Op: OpNe, Value: "x"}, false},
		{"lt", Filter{Field: "age", Op: OpLt, Value: 50}, true},
		{"gte", Filter{Field: "age", Op: OpGte, Value: 42}, true},
		{"gt", Filter{Field: "age", Op: OpGt, Value: 42}, false},
		{"number vs string range", Filter{Field: "age", Op: OpLt, Value: "50"}, false},
		{"array contains", Filter{Field: "tags", Op: OpArrayContains, Value: "vip"}, true},
		{"array contains miss", Filter{Field: "tags", Op: OpArrayContains, Value: "old"}, false},
		{"array contains on scalar", Filter{Field: "status", Op: OpArrayContains, Value: "active"}, false},
		{"in", Filter{Field: "address.state", Op: OpIn, Value: []interface{}{"NY", "CA"}}, true},
		{"in miss", Filter{Field: "address.state", Op: OpIn, Value: []interface{}{"NY"}}, false},
		{"nested missing", Filter{Field: "address.city", Op: OpEq, Value: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(doc, []Filter{tt.filter}))
		})
	}
}

func TestSortDocumentsTieBreaksOnID(t *testing.T) {
	docs := []model.Document{
		{"id": "c", "rank": float64(1)},
		{"id": "a", "rank": float64(2)},
		{"id": "b", "rank": float64(1)},
		{"id": "d"},
	}

	SortDocuments(docs, "rank", Asc)
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(docs))

	SortDocuments(docs, "rank", Desc)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(docs))
}

func ids(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["id"].(string)
	}
	return out
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodePermissionDenied, "You don't have permission to perform this action."},
		{CodeNotFound, "The requested record was not found."},
		{CodeUnavailable, "The service is temporarily unavailable. Please try again later."},
		{CodeDeadlineExceeded, "The request timed out. Please try again."},
		{CodeResourceExhausted, "Too many requests. Please wait a moment and try again."},
		{CodeUnknown, "An unexpected error occurred. Please try again."},
		{CodeAlreadyExists, "An unexpected error occurred. Please try again."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(NewError(tt.code, "op", "c", "", nil)), string(tt.code))
	}
	assert.Equal(t, "An unexpected error occurred. Please try again.", UserMessage(assert.AnError))
}
