package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectionToggleAndIDs(t *testing.T) {
	s := NewSelection()
	require.False(t, s.Active())

	s.Enter()
	require.True(t, s.Toggle(5))
	require.True(t, s.Toggle(2))
	require.False(t, s.Toggle(5))
	require.True(t, s.Toggle(9))

	require.Equal(t, []int64{2, 9}, s.IDs())
	require.True(t, s.Contains(9))
	require.False(t, s.Contains(5))
	require.Equal(t, 2, s.Len())
}

func TestSelectionSelectAllTogglesAllOrNone(t *testing.T) {
	s := NewSelection()
	s.Enter()
	visible := []int64{3, 1, 2}

	s.SelectAll(visible)
	require.Equal(t, []int64{1, 2, 3}, s.IDs())

	s.SelectAll(visible)
	require.Zero(t, s.Len())

	s.Toggle(1)
	s.SelectAll(visible)
	require.Equal(t, []int64{1, 2, 3}, s.IDs(), "partial selection selects all")
}

func TestSelectionExitClears(t *testing.T) {
	s := NewSelection()
	s.Enter()
	s.Toggle(1)
	s.Exit()
	require.False(t, s.Active())
	require.Zero(t, s.Len())

	s.Enter()
	s.Toggle(4)
	s.Clear()
	require.True(t, s.Active())
	require.Empty(t, s.IDs())
}
