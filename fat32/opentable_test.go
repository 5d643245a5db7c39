package fat32_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-fat32/fat32vol/fat32"
)

func TestOpenTable_TooManyOpen(t *testing.T) {
	table := fat32.NewOpenTable()

	for i := 0; i < fat32.MaxOpenFiles; i++ {
		loc := fat32.DirentLocation{Sector: uint32(i), Offset: 0}
		_, err := table.Open(loc)
		require.NoError(t, err)
	}

	_, err := table.Open(fat32.DirentLocation{Sector: 9999, Offset: 0})
	require.ErrorIs(t, err, fat32.ErrTooManyOpen)
}

func TestOpenTable_CloseFreesSlot(t *testing.T) {
	table := fat32.NewOpenTable()
	loc := fat32.DirentLocation{Sector: 1, Offset: 0}

	slot, err := table.Open(loc)
	require.NoError(t, err)
	require.True(t, table.IsOpen(loc))

	table.Close(slot)
	require.False(t, table.IsOpen(loc))
	require.Equal(t, 0, table.Count())
}
