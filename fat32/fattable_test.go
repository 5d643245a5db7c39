package fat32_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-fat32/fat32vol/fat32"
	"github.com/go-fat32/fat32vol/fattest"
)

// buildMinimalVolume hand-writes just enough of a FAT32 DBR/FAT/root region
// to mount successfully, without depending on the fat32format build tag's
// Formatter. Grounded on dargueta/disko's testing/images.go role of handing
// tests a ready-made backing image without exercising the driver's own
// write path.
func buildMinimalVolume(t *testing.T, totalSectors, sectorsPerCluster uint32) (*fat32.Volume, *fattest.MemoryBlockIO) {
	t.Helper()

	const reserved = 32
	const numFATs = uint32(2)

	fatSizeSectors := uint32(1)
	var totalClusters uint32
	for i := 0; i < 4; i++ {
		dataSectors := totalSectors - reserved - numFATs*fatSizeSectors
		totalClusters = dataSectors / sectorsPerCluster
		next := (totalClusters*4 + 511) / 512
		if next == 0 {
			next = 1
		}
		next++
		if next == fatSizeSectors {
			break
		}
		fatSizeSectors = next
	}

	dev := fattest.NewMemoryBlockIO(int(totalSectors))
	raw := dev.Bytes()

	put16 := func(off int, v uint16) { raw[off], raw[off+1] = byte(v), byte(v>>8) }
	put32 := func(off int, v uint32) {
		raw[off], raw[off+1], raw[off+2], raw[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}

	raw[0], raw[1], raw[2] = 0xEB, 0x58, 0x90
	put16(11, fat32.SectorSize)
	raw[13] = byte(sectorsPerCluster)
	put16(14, reserved)
	raw[16] = byte(numFATs)
	put32(32, totalSectors)
	put32(36, fatSizeSectors)
	put32(44, fat32.ClusterFirstValid)
	put16(48, 1)
	put16(510, 0xAA55)

	fat1Start := reserved * fat32.SectorSize
	put32(fat1Start+0, 0x0FFFFFF8)
	put32(fat1Start+4, fat32.ClusterEndOfChain)
	put32(fat1Start+8, fat32.ClusterEndOfChain)
	fat2Start := int(reserved+fatSizeSectors) * fat32.SectorSize
	copy(raw[fat2Start:fat2Start+fat32.SectorSize], raw[fat1Start:fat1Start+fat32.SectorSize])

	fsInfoStart := 1 * fat32.SectorSize
	put32(fsInfoStart+0, 0x41615252)
	put32(fsInfoStart+484, 0x61417272)
	put32(fsInfoStart+488, totalClusters-1)
	put32(fsInfoStart+492, fat32.ClusterFirstValid)
	put32(fsInfoStart+508, 0xAA550000)

	vol, err := fat32.MountVolume(dev)
	require.NoError(t, err)
	return vol, dev
}

func TestFatTable_FollowChainFast_SingleCluster(t *testing.T) {
	vol, _ := buildMinimalVolume(t, 4096, 1)
	table := fat32.NewFatTable(vol)

	tail, err := table.FollowChainFast(fat32.ClusterFirstValid)
	require.NoError(t, err)
	require.EqualValues(t, fat32.ClusterFirstValid, tail)
}

func TestFatTable_SetThenNext(t *testing.T) {
	vol, _ := buildMinimalVolume(t, 4096, 1)
	table := fat32.NewFatTable(vol)

	require.NoError(t, table.Set(3, 4))
	require.NoError(t, table.Set(4, fat32.ClusterEndOfChain))
	require.NoError(t, table.Flush())

	next, err := table.Next(3)
	require.NoError(t, err)
	require.EqualValues(t, 4, next)

	tail, err := table.FollowChainFast(3)
	require.NoError(t, err)
	require.EqualValues(t, 4, tail)
}

func TestFatTable_FindNextFree_Wraps(t *testing.T) {
	vol, _ := buildMinimalVolume(t, 4096, 1)
	table := fat32.NewFatTable(vol)

	max := vol.MaxCluster()
	require.NoError(t, table.Set(max, 1)) // occupy the very last cluster
	require.NoError(t, table.Flush())

	// Ask for a free cluster starting from the end: should wrap to 3 (2 is
	// the root, occupied by the minimal volume fixture).
	next, ok, err := table.FindNextFree(max)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, next)
}

func TestFreeClusterIndex_MatchesFatTable(t *testing.T) {
	vol, _ := buildMinimalVolume(t, 4096, 1)
	table := fat32.NewFatTable(vol)
	idx := fat32.NewFreeClusterIndex(table)

	cluster, ok, err := idx.SeekNextFreeInBitmap(fat32.ClusterFirstValid)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, cluster) // 2 is occupied by the root

	refNext, refOK, err := table.FindNextFree(fat32.ClusterFirstValid - 1)
	require.NoError(t, err)
	require.True(t, refOK)
	require.Equal(t, refNext, cluster)
}
