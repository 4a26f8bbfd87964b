package repository

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/pkg/values"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultOrderBy  = "created_at"
)

// Op is a filter operator.
type Op string

const (
	OpEq            Op = "=="
	OpNe            Op = "!="
	OpLt            Op = "<"
	OpLte           Op = "<="
	OpGt            Op = ">"
	OpGte           Op = ">="
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in"
)

var validOps = map[Op]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true,
	OpArrayContains: true, OpIn: true,
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Filter restricts a query to documents whose Field satisfies Op Value.
// Field may be a dotted path into nested objects.
type Filter struct {
	Field string      `json:"field"`
	Op    Op          `json:"op"`
	Value interface{} `json:"value"`
}

// Query is a typed collection read.
type Query struct {
	Filters   []Filter
	OrderBy   string
	Direction Direction
	PageSize  int
	Cursor    string
}

// FindOptions is what a DocumentStore receives once the cursor is resolved.
type FindOptions struct {
	Filters   []Filter  `json:"filters,omitempty"`
	OrderBy   string    `json:"order_by"`
	Direction Direction `json:"direction"`
	Offset    int       `json:"offset"`
	Limit     int       `json:"limit"`
}

// Page is one slice of a query result.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ValidField reports whether name is a safe (dotted) field path.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Validate checks field names and operators before they reach a backend.
func (f Filter) Validate() error {
	if !ValidField(f.Field) {
		return fmt.Errorf("invalid filter field %q", f.Field)
	}
	if !validOps[f.Op] {
		return fmt.Errorf("invalid filter operator %q", f.Op)
	}
	if f.Op == OpIn {
		if _, ok := values.ToSlice(f.Value); !ok {
			return fmt.Errorf("operator %q needs a list value", f.Op)
		}
	}
	return nil
}

// ParseFilter reads "field:op:value". The value is decoded as JSON when
// possible (so 3, true and "x" keep their types) and kept as a string
// otherwise; for "in" a non-JSON value is split on commas.
func ParseFilter(s string) (Filter, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf("filter %q must look like field:op:value", s)
	}
	f := Filter{Field: parts[0], Op: Op(parts[1])}

	var v interface{}
	if err := json.Unmarshal([]byte(parts[2]), &v); err == nil {
		f.Value = v
	} else if f.Op == OpIn {
		items := strings.Split(parts[2], ",")
		list := make([]interface{}, len(items))
		for i, item := range items {
			list[i] = strings.TrimSpace(item)
		}
		f.Value = list
	} else {
		f.Value = parts[2]
	}
	return f, f.Validate()
}

// EncodeCursor produces an opaque continuation token.
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte("o:" + strconv.Itoa(offset)))
}

// DecodeCursor reverses EncodeCursor. The empty cursor is the first page.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || !strings.HasPrefix(string(raw), "o:") {
		return 0, fmt.Errorf("malformed cursor")
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(raw), "o:"))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed cursor")
	}
	return n, nil
}

// NormalizePageSize clamps to [1, MaxPageSize], defaulting to DefaultPageSize.
func NormalizePageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// Lookup resolves a dotted path inside doc.
func Lookup(doc model.Document, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Match evaluates filters in memory. A document missing a filtered field
// never matches, including for "!=".
func Match(doc model.Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := Lookup(doc, f.Field)
		if !ok || v == nil {
			return false
		}
		if !matchOne(v, f) {
			return false
		}
	}
	return true
}

func matchOne(v interface{}, f Filter) bool {
	switch f.Op {
	case OpEq:
		return values.Equal(v, f.Value)
	case OpNe:
		return !values.Equal(v, f.Value)
	case OpLt, OpLte, OpGt, OpGte:
		if values.IsNumber(v) != values.IsNumber(f.Value) {
			return false
		}
		c, ok := values.Compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpLt:
			return c < 0
		case OpLte:
			return c <= 0
		case OpGt:
			return c > 0
		default:
			return c >= 0
		}
	case OpArrayContains:
		if _, isList := values.ToSlice(v); !isList {
			return false
		}
		return values.Contains(v, f.Value)
	case OpIn:
		return values.In(v, f.Value)
	}
	return false
}

// SortDocuments orders docs by field then id. Missing values sort first in
// ascending order.
func SortDocuments(docs []model.Document, field string, dir Direction) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareField(docs[i], docs[j], field)
		if c == 0 {
			a, _ := docs[i]["id"].(string)
			b, _ := docs[j]["id"].(string)
			return a < b
		}
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareField(a, b model.Document, field string) int {
	av, aok := Lookup(a, field)
	bv, bok := Lookup(b, field)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	c, _ := values.Compare(av, bv)
	return c
}
