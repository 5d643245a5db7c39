package fat32_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-fat32/fat32vol/fat32"
)

func TestTailCache_LookupAndTouch(t *testing.T) {
	cache := fat32.NewTailCache(2)
	locA := fat32.DirentLocation{Sector: 1, Offset: 0}

	_, ok := cache.Lookup(locA)
	require.False(t, ok)

	cache.Touch(locA, 42)
	tail, ok := cache.Lookup(locA)
	require.True(t, ok)
	require.EqualValues(t, 42, tail)
}

func TestTailCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := fat32.NewTailCache(2)
	locA := fat32.DirentLocation{Sector: 1, Offset: 0}
	locB := fat32.DirentLocation{Sector: 2, Offset: 0}
	locC := fat32.DirentLocation{Sector: 3, Offset: 0}

	cache.Touch(locA, 10)
	cache.Touch(locB, 20)
	// Touching A again moves it to the front, leaving B as the LRU victim.
	cache.Touch(locA, 11)
	cache.Touch(locC, 30)

	_, ok := cache.Lookup(locB)
	require.False(t, ok, "B should have been evicted")

	tail, ok := cache.Lookup(locA)
	require.True(t, ok)
	require.EqualValues(t, 11, tail)

	tail, ok = cache.Lookup(locC)
	require.True(t, ok)
	require.EqualValues(t, 30, tail)
}

func TestTailCache_Forget(t *testing.T) {
	cache := fat32.NewTailCache(4)
	loc := fat32.DirentLocation{Sector: 1, Offset: 0}

	cache.Touch(loc, 5)
	cache.Forget(loc)

	_, ok := cache.Lookup(loc)
	require.False(t, ok)
}
