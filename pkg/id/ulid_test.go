package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULIDGenerator_Generate(t *testing.T) {
	gen := NewULIDGenerator()

	v := gen.Generate()
	assert.Len(t, v, 26)
	assert.True(t, IsValid(v))
	assert.False(t, IsValid("not-a-ulid"))
}

// TestULIDGenerator_Monotonic 测试同一生成器产生的 ID 单调递增且不重复。
func TestULIDGenerator_Monotonic(t *testing.T) {
	gen := NewULIDGenerator()
	ids := gen.GenerateN(1000)
	require.Len(t, ids, 1000)

	assert.True(t, sort.StringsAreSorted(ids))

	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, IsValid(a))
}
