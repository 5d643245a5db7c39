package fat32

// FatTable reads and mutates FAT32's File Allocation Table: the array of
// 32-bit entries (one per cluster) that links each file's and directory's
// clusters into a chain.
//
// It keeps a single loaded-sector buffer, reused across calls, so that
// walking a chain whose clusters all map to the same FAT sector (the common
// case for contiguous allocations) costs one sector read no matter how long
// the chain is. This mirrors the segment-skip optimization dargueta/disko's
// ClusterStream/Allocator types don't need (they operate over a
// whole-volume bitmap) but which requires for the FAT walk
// itself.
type FatTable struct {
	vol *Volume

	loaded bool
	loadedSector uint32
	buf [SectorSize]byte
	dirty bool
}

// NewFatTable returns a FatTable bound to vol's first FAT copy.
func NewFatTable(vol *Volume) *FatTable {
	return &FatTable{vol: vol}
}

// entriesPerSector is the number of 32-bit FAT entries in one sector.
const entriesPerSector = SectorSize / 4

func (t *FatTable) loadSector(sector uint32) error {
	if t.loaded && t.loadedSector == sector {
		return nil
	}
	if err := t.flush(); err != nil {
		return err
	}
	buf, err := readSector(t.vol.dev, sector)
	if err != nil {
		return err
	}
	copy(t.buf[:], buf)
	t.loaded = true
	t.loadedSector = sector
	t.dirty = false
	return nil
}

// flush writes back the currently loaded sector if it was modified, to
// every FAT copy on the volume (FAT32 keeps num_fats mirrored copies).
func (t *FatTable) flush() error {
	if !t.loaded || !t.dirty {
		return nil
	}
	for i := uint32(0); i < t.vol.numFATs; i++ {
		mirrorSector := t.loadedSector + i*t.vol.fatSizeSectors
		if err := writeSector(t.vol.dev, mirrorSector, t.buf[:]); err != nil {
			return err
		}
	}
	t.dirty = false
	return nil
}

// sectorSpan returns the inclusive [first, last] cluster numbers whose FAT
// entries live in the given FAT sector, clipped to the volume's valid
// cluster range.
func (t *FatTable) sectorSpan(sector uint32) (first, last uint32) {
	index := (sector - t.vol.fat1StartSector) * entriesPerSector
	first = index
	last = index + entriesPerSector - 1
	if last > t.vol.MaxCluster() {
		last = t.vol.MaxCluster()
	}
	return
}

// Next reads the raw FAT entry at cluster The returned
// value is masked to FAT32's significant 28 bits.
func (t *FatTable) Next(cluster uint32) (uint32, error) {
	sector, offset := t.vol.ClusterToFATSector(cluster)
	if err := t.loadSector(sector); err != nil {
		return 0, err
	}
	return getU32(t.buf[:], offset) & clusterEntryMask, nil
}

// Set writes v into the FAT entry at cluster via read-modify-write,
// preserving the reserved upper 4 bits already on disk.
func (t *FatTable) Set(cluster uint32, v uint32) error {
	sector, offset := t.vol.ClusterToFATSector(cluster)
	if err := t.loadSector(sector); err != nil {
		return err
	}
	existing := getU32(t.buf[:], offset)
	reserved := existing &^ clusterEntryMask
	putU32(t.buf[:], offset, reserved|(v&clusterEntryMask))
	t.dirty = true
	return nil
}

// Flush forces any buffered FAT sector modifications out to disk. Exposed
// so Writer can force a flush at stitch-step boundaries (step
// 4's "flush the current buffer" language).
func (t *FatTable) Flush() error {
	return t.flush()
}

// FollowChainFast walks the chain starting at start and returns the tail
// cluster — the one whose FAT entry equals ClusterEndOfChain — using the
// segment-skip traversal of : loadSector is a no-op whenever
// consecutive clusters in the chain share a FAT sector, which is the common
// case for a chain built from a single contiguous run.
func (t *FatTable) FollowChainFast(start uint32) (uint32, error) {
	cur := start
	for {
		entry, err := t.Next(cur)
		if err != nil {
			return 0, err
		}
		if entry == ClusterEndOfChain {
			return cur, nil
		}
		if entry == ClusterFree || entry == ClusterReserved {
			return 0, newErrf(KindCorruptChain, "cluster %d has invalid next-pointer 0x%x mid-chain", cur, entry)
		}
		cur = entry
	}
}

// DestroyChain walks the chain starting at start and zeroes every FAT entry
// visited, batching writes per FAT sector via the loaded-sector buffer
//.
func (t *FatTable) DestroyChain(start uint32) error {
	cur := start
	for {
		entry, err := t.Next(cur)
		if err != nil {
			return err
		}
		if err := t.Set(cur, ClusterFree); err != nil {
			return err
		}
		if entry == ClusterEndOfChain {
			return t.flush()
		}
		if entry == ClusterFree || entry == ClusterReserved {
			return newErrf(KindCorruptChain, "cluster %d has invalid next-pointer 0x%x mid-chain", cur, entry)
		}
		cur = entry
	}
}

// FindFirstFree scans every FAT sector, in order, for the first entry equal
// to ClusterFree, returning (cluster, true) on success, or (0, false) if
// the volume is full.
func (t *FatTable) FindFirstFree() (uint32, bool, error) {
	for c := ClusterFirstValid; c <= t.vol.MaxCluster(); c++ {
		entry, err := t.Next(c)
		if err != nil {
			return 0, false, err
		}
		if entry == ClusterFree {
			return c, true, nil
		}
	}
	return 0, false, nil
}

// FindNextFree scans forward from after+1 for a free cluster, wrapping
// around to cluster 2 if it reaches the end without finding one, per the
// tie-break rule in : "choose the lowest cluster number >= hint;
// on wrap, lowest >= 2."
func (t *FatTable) FindNextFree(after uint32) (uint32, bool, error) {
	start := after + 1
	if start > t.vol.MaxCluster() || start < ClusterFirstValid {
		start = ClusterFirstValid
	}

	for c := start; c <= t.vol.MaxCluster(); c++ {
		entry, err := t.Next(c)
		if err != nil {
			return 0, false, err
		}
		if entry == ClusterFree {
			return c, true, nil
		}
	}
	for c := ClusterFirstValid; c < start; c++ {
		entry, err := t.Next(c)
		if err != nil {
			return 0, false, err
		}
		if entry == ClusterFree {
			return c, true, nil
		}
	}
	return 0, false, nil
}
