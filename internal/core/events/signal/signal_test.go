package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignal(t *testing.T) {
	var s Signal[int]
	var got []string

	a := s.Subscribe(func(v int) { got = append(got, "a") })
	var b ID
	b = s.Subscribe(func(v int) {
		got = append(got, "b")
		s.Unsubscribe(b)
	})
	require.Equal(t, 2, s.Len())

	s.Emit(1)
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 1, s.Len())

	s.Emit(2)
	require.Equal(t, []string{"a", "b", "a"}, got)

	require.True(t, s.Unsubscribe(a))
	require.False(t, s.Unsubscribe(a))
	s.Emit(3)
	require.Len(t, got, 3)
}
