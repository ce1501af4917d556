package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool(t *testing.T) {
	created := 0
	p := NewPool(func() []int {
		created++
		return make([]int, 0, 4)
	}, func(s []int) []int { return s[:0] })

	s := p.Get()
	assert.Equal(t, 1, created)
	s = append(s, 1, 2)
	p.Put(s)

	got := p.Get()
	assert.Empty(t, got)
}

func TestSlicePool(t *testing.T) {
	p := NewSlicePool[*int](8)
	v := 3

	s := p.Get()
	assert.Empty(t, *s)
	assert.GreaterOrEqual(t, cap(*s), 8)
	*s = append(*s, &v, &v)
	backing := (*s)[:2]
	p.Put(s)

	assert.Empty(t, *s)
	assert.Nil(t, backing[0], "pointers are cleared before reuse")
}
