package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want bool
	}{
		{"int and float", 1, 1.0, true},
		{"bool strict", true, true, true},
		{"string is not bool", "true", true, false},
		{"string is not number", "1", 1.0, false},
		{"arrays", []interface{}{"a", 1.0}, []interface{}{"a", 1}, true},
		{"arrays differ", []interface{}{"a"}, []interface{}{"b"}, false},
		{"nil", nil, nil, true},
		{"maps", map[string]interface{}{"x": 1.0}, map[string]interface{}{"x": 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	c, ok := Compare(10.0, "9")
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare("2024-01-01", "2024-03-01T10:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare("2024-01-01T00:00:00Z", "2024-01-01T00:00:00.1Z")
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = Compare(true, 3.0)
	assert.False(t, ok)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty("   "))
	assert.True(t, IsEmpty([]interface{}{}))
	assert.True(t, IsEmpty(map[string]interface{}{}))
	assert.False(t, IsEmpty(false))
	assert.False(t, IsEmpty(0.0))
	assert.False(t, IsEmpty("x"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("peanut allergy", "peanut"))
	assert.False(t, Contains("peanut allergy", "shellfish"))
	assert.True(t, Contains([]interface{}{"a", 2.0}, 2))
	assert.False(t, Contains(nil, "a"))
}

func TestCloneIsDeep(t *testing.T) {
	src := map[string]interface{}{"nested": map[string]interface{}{"k": "v"}, "list": []interface{}{1.0}}
	cp := CloneMap(src)
	cp["nested"].(map[string]interface{})["k"] = "changed"
	cp["list"].([]interface{})[0] = 2.0
	assert.Equal(t, "v", src["nested"].(map[string]interface{})["k"])
	assert.Equal(t, 1.0, src["list"].([]interface{})[0])
}
