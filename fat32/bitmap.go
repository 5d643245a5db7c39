package fat32

import "github.com/boljen/go-bitmap"

// bitsPerFATSector is the number of FAT entries covered by one cached
// bitmap, one bit per entry.
const bitsPerFATSector = entriesPerSector

// FreeClusterIndex is a one-FAT-sector-at-a-time occupancy bitmap cache,
// grounded on dargueta/disko's drivers/common/allocatormap.go Allocator
// (which wraps the same github.com/boljen/go-bitmap package over a
// whole-volume bitmap). Here the bitmap only ever covers a single loaded
// FAT sector's 128 entries — a whole-volume bitmap does
// not fit the embedded memory budget this driver targets.
//
// The "currently covering" FAT sector is an explicit tagged field so the
// cache can be invalidated precisely after operations that cross sector
// boundaries, rather than kept as a single untagged global.
type FreeClusterIndex struct {
	table *FatTable

	valid bool
	coveringSector uint32
	bits bitmap.Bitmap
}

// NewFreeClusterIndex returns an empty, uninitialized cache bound to table.
func NewFreeClusterIndex(table *FatTable) *FreeClusterIndex {
	return &FreeClusterIndex{table: table, bits: bitmap.New(bitsPerFATSector)}
}

// refill loads the occupancy of FAT sector and marks it as the currently
// covering sector. Results after a refill must be identical to scanning the
// FAT directly ; refill is the only place that reads the FAT.
func (idx *FreeClusterIndex) refill(sector uint32) error {
	first, last := idx.table.sectorSpan(sector)
	for c := first; c <= last; c++ {
		entry, err := idx.table.Next(c)
		if err != nil {
			return err
		}
		idx.bits.Set(int(c-first), entry != ClusterFree)
	}
	// Entries past `last` (tail sector shorter than a full 128) are parked
	// as occupied so SeekNextFreeInBitmap never reports them as free.
	for c := last + 1; c < first+bitsPerFATSector; c++ {
		idx.bits.Set(int(c-first), true)
	}

	idx.coveringSector = sector
	idx.valid = true
	return nil
}

// Invalidate drops the cached sector, forcing the next lookup to refill.
// Mutations that touch the FAT outside this cache's knowledge (e.g. a
// directly-issued FatTable.Set) must call this to avoid stale hits.
func (idx *FreeClusterIndex) Invalidate() {
	idx.valid = false
}

// ensureCovers refills the cache if it doesn't currently cover cluster.
func (idx *FreeClusterIndex) ensureCovers(cluster uint32) error {
	sector, _ := idx.table.vol.ClusterToFATSector(cluster)
	if idx.valid && idx.coveringSector == sector {
		return nil
	}
	return idx.refill(sector)
}

// MarkOccupied updates the cached bit for cluster to occupied, if the cache
// currently covers it. This keeps the bitmap in sync with a cluster that
// was just allocated without forcing a refill.
func (idx *FreeClusterIndex) MarkOccupied(cluster uint32) {
	sector, _ := idx.table.vol.ClusterToFATSector(cluster)
	if !idx.valid || idx.coveringSector != sector {
		return
	}
	first, _ := idx.table.sectorSpan(sector)
	idx.bits.Set(int(cluster-first), true)
}

// SeekNextFreeInBitmap finds the next free cluster at or after c, searching
// only within the FAT sector the cache currently covers (or the one
// covering c, refilling if needed). It returns (cluster, true) on a hit, or
// (0, false) on a miss — meaning the caller must advance to the next FAT
// sector (FatTable.FindNextFree) and refill the cache for it.
func (idx *FreeClusterIndex) SeekNextFreeInBitmap(c uint32) (uint32, bool, error) {
	if err := idx.ensureCovers(c); err != nil {
		return 0, false, err
	}

	first, last := idx.table.sectorSpan(idx.coveringSector)
	if c < first {
		c = first
	}
	for cluster := c; cluster <= last; cluster++ {
		if !idx.bits.Get(int(cluster - first)) {
			return cluster, true, nil
		}
	}
	return 0, false, nil
}
