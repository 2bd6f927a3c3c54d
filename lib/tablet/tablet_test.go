package tablet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAllocateAndAdvance(t *testing.T) {
	table := NewTable(3)
	assert.Equal(t, uint32(3), table.ID())

	// Ids are handed out monotonically starting at 0.
	assert.Equal(t, uint64(0), table.AllocateObjectID())
	assert.Equal(t, uint64(1), table.AllocateObjectID())

	// Advance never lowers the version counter.
	assert.Equal(t, uint64(0), table.Version())
	table.Advance(5)
	assert.Equal(t, uint64(5), table.Version())
	table.Advance(2)
	assert.Equal(t, uint64(5), table.Version())
}

func TestSetTabletsRejectsOverlap(t *testing.T) {
	tt := New()

	err := tt.SetTablets([]Tablet{
		{TableID: 1, Start: 0, End: 10, State: StateNormal},
		{TableID: 1, Start: 10, End: 20, State: StateNormal},
	})
	assert.ErrorIs(t, err, ErrInvalidTablets)

	// Identical ranges in different tables do not overlap.
	err = tt.SetTablets([]Tablet{
		{TableID: 1, Start: 0, End: 10, State: StateNormal},
		{TableID: 2, Start: 0, End: 10, State: StateNormal},
	})
	assert.NoError(t, err)
}

func TestLookup(t *testing.T) {
	tt := New()
	require.NoError(t, tt.SetTablets([]Tablet{
		{TableID: 1, Start: 0, End: 9, State: StateNormal},
		{TableID: 1, Start: 20, End: 29, State: StateRecovering},
	}))

	// Covered by a NORMAL tablet.
	tab, table, err := tt.Lookup(1, 5)
	require.NoError(t, err)
	assert.NotNil(t, table)
	assert.Equal(t, uint64(0), tab.Start)

	// Covered by a RECOVERING tablet.
	_, _, err = tt.Lookup(1, 25)
	assert.ErrorIs(t, err, ErrTabletNotNormal)

	// In a gap between tablets.
	_, _, err = tt.Lookup(1, 15)
	assert.ErrorIs(t, err, ErrNoTablet)

	// Unknown table.
	_, _, err = tt.Lookup(9, 0)
	assert.ErrorIs(t, err, ErrNoTablet)
}

func TestSetTabletsPreservesTableHandles(t *testing.T) {
	tt := New()
	require.NoError(t, tt.SetTablets([]Tablet{
		{TableID: 1, Start: 0, End: 1, State: StateNormal},
		{TableID: 2, Start: 0, End: 1, State: StateNormal},
	}))

	table2, ok := tt.Table(2)
	require.True(t, ok)
	table2.Advance(7)

	// Replace the set: table 2 survives (split into two tablets), table 1
	// is dropped, table 3 is new.
	require.NoError(t, tt.SetTablets([]Tablet{
		{TableID: 2, Start: 0, End: 1, State: StateNormal},
		{TableID: 2, Start: 2, End: 3, State: StateNormal},
		{TableID: 3, Start: 0, End: 1, State: StateNormal},
	}))

	// Both tablets of table 2 share the surviving handle.
	got, ok := tt.Table(2)
	require.True(t, ok)
	assert.Same(t, table2, got)
	assert.Equal(t, uint64(7), got.Version())

	_, ok = tt.Table(1)
	assert.False(t, ok)

	table3, ok := tt.Table(3)
	require.True(t, ok)
	assert.Equal(t, uint64(0), table3.Version())
}

func TestAddRecoveringAndStateTransitions(t *testing.T) {
	tt := New()
	require.NoError(t, tt.SetTablets([]Tablet{
		{TableID: 0, Start: 0, End: 100, State: StateNormal},
	}))

	recovering := []Tablet{
		{TableID: 123, Start: 0, End: 9},
		{TableID: 123, Start: 10, End: 19},
	}
	require.NoError(t, tt.AddRecovering(recovering))

	// Not serving while recovering.
	_, _, err := tt.Lookup(123, 5)
	assert.ErrorIs(t, err, ErrTabletNotNormal)
	_, err = tt.NormalTable(123)
	assert.ErrorIs(t, err, ErrTabletNotNormal)

	// Both recovering tablets share one table handle.
	table, ok := tt.Table(123)
	require.True(t, ok)

	tt.MarkNormal(recovering)
	_, _, err = tt.Lookup(123, 5)
	assert.NoError(t, err)
	got, err := tt.NormalTable(123)
	require.NoError(t, err)
	assert.Same(t, table, got)

	// The original tablet is untouched.
	_, _, err = tt.Lookup(0, 50)
	assert.NoError(t, err)
}

func TestDrop(t *testing.T) {
	tt := New()
	tablets := []Tablet{
		{TableID: 1, Start: 0, End: 9, State: StateNormal},
		{TableID: 2, Start: 0, End: 9, State: StateNormal},
	}
	require.NoError(t, tt.SetTablets(tablets))

	tt.Drop(tablets[1:])

	_, _, err := tt.Lookup(2, 5)
	assert.ErrorIs(t, err, ErrNoTablet)
	_, ok := tt.Table(2)
	assert.False(t, ok)
	_, _, err = tt.Lookup(1, 5)
	assert.NoError(t, err)
}

func TestAddRecoveringChecksOverlap(t *testing.T) {
	tt := New()
	require.NoError(t, tt.SetTablets([]Tablet{
		{TableID: 1, Start: 0, End: 10, State: StateNormal},
	}))

	err := tt.AddRecovering([]Tablet{{TableID: 1, Start: 5, End: 15}})
	assert.ErrorIs(t, err, ErrInvalidTablets)
}
