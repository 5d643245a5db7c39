package fat32

// DirentLocation identifies an FDI slot by its absolute sector and the
// byte offset of the entry within that sector. Per, this pair
// uniquely identifies an open file within the volume and is the key
// OpenTable and TailCache use.
type DirentLocation struct {
	Sector uint32
	Offset int
}

// Directory provides FDI iteration, name lookup, and free-slot search over
// a directory's cluster chain, generalizing the cluster-to-dirent-slice walk
// in dargueta/disko's drivers/fat/driverbase.go (clusterToDirentSlice,
// ReadDirFromDirent) from FAT12's fixed DirentsPerCluster bookkeeping to
// FAT32's chain-of-clusters directories (including the root directory,
// which on FAT32 is an ordinary cluster chain rather than a fixed region).
type Directory struct {
	vol *Volume
	table *FatTable
}

// NewDirectory returns a Directory bound to vol and table.
func NewDirectory(vol *Volume, table *FatTable) *Directory {
	return &Directory{vol: vol, table: table}
}

// Entry pairs a decoded FDI with the location its bytes live at on disk.
type Entry struct {
	FDI FDI
	Location DirentLocation
}

// ForEach walks every cluster in the directory chain starting at
// firstCluster, sector by sector, slot by slot, invoking visit for each
// entry encountered (live, deleted, or never-used) until visit returns
// false or the first never-used slot has been visited (0x00 means
// "no further entries exist; may stop").
func (d *Directory) ForEach(firstCluster uint32, visit func(Entry) bool) error {
	cluster := firstCluster
	for {
		sector, err := d.vol.ClusterToSector(cluster)
		if err != nil {
			return err
		}

		for s := uint32(0); s < d.vol.SectorsPerCluster(); s++ {
			absSector := sector + s
			buf, err := readSector(d.vol.dev, absSector)
			if err != nil {
				return err
			}

			for off := 0; off+DirentSize <= SectorSize; off += DirentSize {
				fdi := decodeFDI(buf[off : off+DirentSize])

				keepGoing := visit(Entry{FDI: fdi, Location: DirentLocation{Sector: absSector, Offset: off}})
				if !keepGoing || fdi.IsNeverUsed() {
					return nil
				}
			}
		}

		next, err := d.table.Next(cluster)
		if err != nil {
			return err
		}
		if next == ClusterEndOfChain {
			return nil
		}
		cluster = next
	}
}

// FindByName returns the live entry in the directory chain whose display
// name exactly matches name (byte-exact, case-sensitive).
func (d *Directory) FindByName(firstCluster uint32, name string) (Entry, bool, error) {
	var found Entry
	ok := false

	err := d.ForEach(firstCluster, func(e Entry) bool {
		if e.FDI.IsLive() && e.FDI.DisplayName() == name {
			found = e
			ok = true
			return false
		}
		return true
	})
	return found, ok, err
}

// FindFreeSlot returns the location of the first slot in the directory
// chain whose first byte is 0x00 or 0xE5 (never-used or deleted).
// ok is false if the chain has no such slot and must be
// extended by one cluster.
func (d *Directory) FindFreeSlot(firstCluster uint32) (DirentLocation, bool, error) {
	var found DirentLocation
	ok := false

	err := d.ForEach(firstCluster, func(e Entry) bool {
		if e.FDI.IsNeverUsed() || e.FDI.IsDeleted() {
			found = e.Location
			ok = true
			return false
		}
		return true
	})
	return found, ok, err
}

// WriteEntry serializes fdi and writes it to loc.
func (d *Directory) WriteEntry(loc DirentLocation, fdi FDI) error {
	buf, err := readSector(d.vol.dev, loc.Sector)
	if err != nil {
		return err
	}
	fdi.encodeInto(buf[loc.Offset : loc.Offset+DirentSize])
	return writeSector(d.vol.dev, loc.Sector, buf)
}

// ReadEntry reads back the FDI stored at loc.
func (d *Directory) ReadEntry(loc DirentLocation) (FDI, error) {
	buf, err := readSector(d.vol.dev, loc.Sector)
	if err != nil {
		return FDI{}, err
	}
	return decodeFDI(buf[loc.Offset : loc.Offset+DirentSize]), nil
}

// ExtendChain appends one freshly-allocated cluster to the end of the
// directory chain starting at firstCluster, zero-fills it, and marks it
// end-of-chain. It returns the location of the new cluster's first slot,
// ready for FindFreeSlot's caller to use directly.
func (d *Directory) ExtendChain(firstCluster uint32, newCluster uint32) (DirentLocation, error) {
	tail, err := d.table.FollowChainFast(firstCluster)
	if err != nil {
		return DirentLocation{}, err
	}

	zero := make([]byte, d.vol.BytesPerCluster())
	sector, err := d.vol.ClusterToSector(newCluster)
	if err != nil {
		return DirentLocation{}, err
	}
	if err := d.vol.dev.WriteSectors(sector, d.vol.SectorsPerCluster(), zero); err != nil {
		return DirentLocation{}, wrapIOError(err)
	}

	if err := d.table.Set(tail, newCluster); err != nil {
		return DirentLocation{}, err
	}
	if err := d.table.Set(newCluster, ClusterEndOfChain); err != nil {
		return DirentLocation{}, err
	}
	if err := d.table.Flush(); err != nil {
		return DirentLocation{}, err
	}

	return DirentLocation{Sector: sector, Offset: 0}, nil
}
