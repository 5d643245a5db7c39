//go:build fat32format

package fat32_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-fat32/fat32vol/fat32"
	"github.com/go-fat32/fat32vol/fattest"
)

// newTestVolume formats a small in-memory volume with one sector per
// cluster and mounts it, returning the Mount; scenario tests read the
// cluster size back through mnt.Vol.BytesPerCluster.
func newTestVolume(t *testing.T, totalSectors uint32) *fat32.Mount {
	t.Helper()
	dev := fattest.NewMemoryBlockIO(int(totalSectors))
	err := fat32.Format(dev, fat32.FormatOptions{
		TotalSectors:      totalSectors,
		SectorsPerCluster: 1,
		VolumeLabel:       "TESTVOL",
	})
	require.NoError(t, err)

	mnt, err := fat32.MountImage(dev)
	require.NoError(t, err)
	return mnt
}

func TestMount_EmptyFormattedVolume(t *testing.T) {
	mnt := newTestVolume(t, 4096)

	require.Equal(t, mnt.Vol.RootCluster(), mnt.Vol.CWD)
	require.EqualValues(t, mnt.Vol.TotalClusters()-1, mnt.Vol.FreeClusterCount)

	var names []string
	err := mnt.Dir.ForEach(mnt.Vol.RootCluster(), func(e fat32.Entry) bool {
		if e.FDI.IsLive() {
			names = append(names, e.FDI.DisplayName())
		}
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"TESTVOL"}, names)
}

func TestMount_CreateWriteCloseReopenRead(t *testing.T) {
	mnt := newTestVolume(t, 4096)

	h, err := mnt.CreateFile("/A.TXT")
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0xAB}, 513)
	require.NoError(t, mnt.Append(h, payload))
	require.NoError(t, mnt.Close(h))

	h2, err := mnt.Open("/A.TXT")
	require.NoError(t, err)
	defer mnt.Close(h2)

	require.EqualValues(t, 513, h2.Size())

	buf := make([]byte, 513)
	n, err := mnt.Read(h2, buf)
	require.NoError(t, err)
	require.Equal(t, 513, n)
	require.Equal(t, payload, buf)

	tail, err := mnt.Table.FollowChainFast(h2.FirstCluster())
	require.NoError(t, err)
	entry, err := mnt.Table.Next(tail)
	require.NoError(t, err)
	require.EqualValues(t, fat32.ClusterEndOfChain, entry)
}

func TestMount_AppendAcrossClusterBoundary(t *testing.T) {
	mnt := newTestVolume(t, 4096)
	csz := mnt.Vol.BytesPerCluster()

	h, err := mnt.CreateFile("/B.TXT")
	require.NoError(t, err)
	defer mnt.Close(h)

	require.NoError(t, mnt.Append(h, bytes.Repeat([]byte{1}, int(csz))))

	freeBefore := mnt.Vol.FreeClusterCount
	require.NoError(t, mnt.Append(h, bytes.Repeat([]byte{2}, int(csz)+1)))

	require.EqualValues(t, 2*csz+1, h.Size())
	require.EqualValues(t, freeBefore-2, mnt.Vol.FreeClusterCount)
}

func TestMount_TwoSmallWritesFillOneCluster(t *testing.T) {
	dev := fattest.NewMemoryBlockIO(65536)
	require.NoError(t, fat32.Format(dev, fat32.FormatOptions{
		TotalSectors:      65536,
		SectorsPerCluster: 8,
		VolumeLabel:       "BIGVOL",
	}))
	mnt, err := fat32.MountImage(dev)
	require.NoError(t, err)

	h, err := mnt.CreateFile("/C.TXT")
	require.NoError(t, err)
	defer mnt.Close(h)

	freeBefore := mnt.Vol.FreeClusterCount
	require.NoError(t, mnt.Append(h, bytes.Repeat([]byte{1}, 300)))
	require.EqualValues(t, freeBefore-1, mnt.Vol.FreeClusterCount)

	require.NoError(t, mnt.Append(h, bytes.Repeat([]byte{2}, 300)))
	require.EqualValues(t, freeBefore-1, mnt.Vol.FreeClusterCount)

	require.EqualValues(t, 600, h.Size())
	require.EqualValues(t, 4096-600, h.TailFreeBytes())
}

func TestMount_RenameThenLookup(t *testing.T) {
	mnt := newTestVolume(t, 4096)

	for _, name := range []string{"/D1", "/D2", "/D3", "/D4", "/D5"} {
		require.NoError(t, mnt.CreateDir(name))
	}

	h, err := mnt.CreateFile("/D3/F.TXT")
	require.NoError(t, err)
	require.NoError(t, mnt.Close(h))

	require.NoError(t, mnt.Rename("/D3/F.TXT", "/D3/G.TX"))

	_, err = mnt.Open("/D3/G.TX")
	require.NoError(t, err)

	_, err = mnt.Open("/D3/F.TXT")
	require.ErrorIs(t, err, fat32.ErrNotFound)
}

func TestMount_DeleteWhileOpenFails(t *testing.T) {
	mnt := newTestVolume(t, 4096)

	h, err := mnt.CreateFile("/E.TXT")
	require.NoError(t, err)
	defer mnt.Close(h)

	err = mnt.Delete("/E.TXT")
	require.ErrorIs(t, err, fat32.ErrOpenWhileDelete)
}

func TestMount_DeleteThenRecreate(t *testing.T) {
	mnt := newTestVolume(t, 4096)

	h, err := mnt.CreateFile("/F.TXT")
	require.NoError(t, err)
	require.NoError(t, mnt.Close(h))

	require.NoError(t, mnt.Delete("/F.TXT"))

	h2, err := mnt.CreateFile("/F.TXT")
	require.NoError(t, err)
	require.NoError(t, mnt.Close(h2))
}

func TestMount_ZeroLengthWriteIsNoOp(t *testing.T) {
	mnt := newTestVolume(t, 4096)

	h, err := mnt.CreateFile("/G.TXT")
	require.NoError(t, err)
	defer mnt.Close(h)

	freeBefore := mnt.Vol.FreeClusterCount
	err = mnt.Append(h, nil)
	require.ErrorIs(t, err, fat32.ErrZeroLength)
	require.Equal(t, freeBefore, mnt.Vol.FreeClusterCount)
}

func TestMount_DotDotFromRootFails(t *testing.T) {
	mnt := newTestVolume(t, 4096)

	_, err := mnt.Resolver.Resolve("..", mnt.Vol.CWD)
	require.ErrorIs(t, err, fat32.ErrEnterRootParent)
}

func TestMount_OutOfSpaceLeavesStateUnchanged(t *testing.T) {
	mnt := newTestVolume(t, 2048+66) // tiny volume, few data clusters
	csz := mnt.Vol.BytesPerCluster()

	// Consume almost all free clusters with one big file.
	h, err := mnt.CreateFile("/FILL.BIN")
	require.NoError(t, err)

	total := mnt.Vol.FreeClusterCount - 1
	require.NoError(t, mnt.Append(h, bytes.Repeat([]byte{0}, int(total*csz))))
	require.NoError(t, mnt.Close(h))

	h2, err := mnt.CreateFile("/OVERFLOW.BIN")
	require.NoError(t, err)
	defer mnt.Close(h2)

	freeBefore := mnt.Vol.FreeClusterCount
	err = mnt.Append(h2, bytes.Repeat([]byte{1}, int(2*csz)))
	require.ErrorIs(t, err, fat32.ErrOutOfSpace)
	require.Equal(t, freeBefore, mnt.Vol.FreeClusterCount)
	require.EqualValues(t, 0, h2.Size())
}
