// Package values compares and inspects loosely typed JSON values
// (the shapes produced by encoding/json into interface{}).
package values

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// IsEmpty reports whether v carries no user-entered content.
func IsEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ToFloat converts numbers and numeric strings.
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// IsNumber reports whether v is a numeric type (strings excluded).
func IsNumber(v interface{}) bool {
	if _, ok := v.(string); ok {
		return false
	}
	_, ok := ToFloat(v)
	return ok
}

// ToTime parses timestamps and calendar dates.
func ToTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// Equal is strict equality with numeric normalisation: 1 and 1.0 are equal,
// "1" and 1 are not, "true" and true are not.
func Equal(a, b interface{}) bool {
	if IsNumber(a) && IsNumber(b) {
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		return fa == fb
	}
	as, aok := toSlice(a)
	bs, bok := toSlice(b)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	am, aok := a.(map[string]interface{})
	bm, bok := b.(map[string]interface{})
	if aok && bok {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders a and b. Numbers (and numeric strings) compare numerically,
// dates chronologically, other strings lexically. ok is false when the two
// values have no common ordering.
func Compare(a, b interface{}) (int, bool) {
	if fa, ok := ToFloat(a); ok {
		if fb, ok := ToFloat(b); ok {
			return cmpFloat(fa, fb), true
		}
	}
	if ta, ok := ToTime(a); ok {
		if tb, ok := ToTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), true
	}
	ba, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// Contains reports substring containment for strings and element
// membership for arrays.
func Contains(container, item interface{}) bool {
	if s, ok := container.(string); ok {
		if sub, ok := item.(string); ok {
			return strings.Contains(s, sub)
		}
		return false
	}
	if items, ok := toSlice(container); ok {
		for _, el := range items {
			if Equal(el, item) {
				return true
			}
		}
	}
	return false
}

// In reports whether v equals any element of list.
func In(v interface{}, list interface{}) bool {
	items, ok := toSlice(list)
	if !ok {
		return false
	}
	for _, el := range items {
		if Equal(v, el) {
			return true
		}
	}
	return false
}

// ToSlice exposes array values as []interface{}.
func ToSlice(v interface{}) ([]interface{}, bool) {
	return toSlice(v)
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Clone deep-copies maps and slices so callers can't alias stored state.
func Clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// CloneMap is Clone for the common top-level map case.
func CloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return Clone(m).(map[string]interface{})
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
