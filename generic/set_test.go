package generic

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet[string]()
	assert.Equal(0, s.Count())
	assert.False(s.Contains("a"))

	assert.True(s.Add("a"))
	assert.False(s.Add("a"))
	assert.Equal(1, s.Count())
	assert.True(s.Contains("a"))

	assert.True(s.Add("b"))
	assert.Equal(2, s.Count())
	assert.True(s.Contains("a", "b"))
	assert.False(s.Contains("a", "c"))

	assert.True(s.Remove("a"))
	assert.False(s.Remove("a"))
	assert.Equal(1, s.Count())
	assert.False(s.Contains("a"))

	// Contains with no arguments is vacuously true
	assert.True(s.Contains())
}

func TestSetFromItems(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet(1, 2, 3, 2)
	assert.Equal(3, s.Count())
	assert.True(s.Contains(1, 2, 3))
	assert.ElementsMatch([]int{1, 2, 3}, s.ToSlice())
}
