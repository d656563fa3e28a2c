package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_KeepsInsertionOrder(t *testing.T) {
	s := NewSet("b", "a", "b")
	assert.True(t, s.Add("c"))
	assert.False(t, s.Add("a"))
	assert.Equal(t, []string{"b", "a", "c"}, s.List())
	assert.Equal(t, 3, s.Size())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("d"))
}
