package fat32

// fileops.go implements the directory-mutating operations: creating files
// and directories, deleting entries, and renaming. All three
// share the parent-resolution and name-validation logic factored into
// Mount.resolveParent.
//
// Grounded on the create/delete/rename trio in dargueta/disko's
// drivers/fat/driverbase.go (CreateEntry/RemoveEntry-shaped helpers),
// generalized from FAT12's fixed-size root directory to FAT32's
// cluster-chain directories via Directory.ExtendChain.

// CreateFile creates a new, empty file at path and returns an open handle
// to it. It fails with AlreadyExists if an entry with that name already
// lives in the parent directory.
func (m *Mount) CreateFile(path string) (*FileHandle, error) {
	if _, err := m.createEntry(path, 0); err != nil {
		return nil, err
	}
	return m.Open(path)
}

// CreateDir creates a new, empty subdirectory at path, allocating one
// cluster for it and synthesizing "." and ".." entries within it.
func (m *Mount) CreateDir(path string) error {
	parent, _, err := m.resolveParent(path)
	if err != nil {
		return err
	}

	cluster, err := m.writer.allocateCluster()
	if err != nil {
		return err
	}

	loc, err := m.createEntry(path, AttrDirectory)
	if err != nil {
		return err
	}

	fdi, err := m.Dir.ReadEntry(loc)
	if err != nil {
		return err
	}
	fdi.SetFirstCluster(cluster)
	if err := m.Dir.WriteEntry(loc, fdi); err != nil {
		return err
	}

	if err := m.Table.Set(cluster, ClusterEndOfChain); err != nil {
		return err
	}
	if err := m.Table.Flush(); err != nil {
		return err
	}

	sector, err := m.Vol.ClusterToSector(cluster)
	if err != nil {
		return err
	}
	zero := make([]byte, m.Vol.BytesPerCluster())
	if err := m.Vol.dev.WriteSectors(sector, m.Vol.SectorsPerCluster(), zero); err != nil {
		return wrapIOError(err)
	}

	dot := FDI{Name: nameField(dotEntryName()), Ext: extField(dotEntryName()), Attr: AttrDirectory}
	dot.SetFirstCluster(cluster)
	if err := m.Dir.WriteEntry(DirentLocation{Sector: sector, Offset: 0}, dot); err != nil {
		return err
	}

	dotdot := FDI{Name: nameField(dotDotEntryName()), Ext: extField(dotDotEntryName()), Attr: AttrDirectory}
	dotdotCluster := parent
	if dotdotCluster == m.Vol.RootCluster() {
		dotdotCluster = 0
	}
	dotdot.SetFirstCluster(dotdotCluster)
	if err := m.Dir.WriteEntry(DirentLocation{Sector: sector, Offset: DirentSize}, dotdot); err != nil {
		return err
	}

	if m.Vol.FreeClusterCount != fsinfoUnknownCount {
		m.Vol.FreeClusterCount--
	}
	return m.Vol.persistFSInfo()
}

// nameField and extField split an 11-byte short name into its 8-byte name
// and 3-byte extension halves for building an FDI literal.
func nameField(short [11]byte) [8]byte {
	var out [8]byte
	copy(out[:], short[0:8])
	return out
}

func extField(short [11]byte) [3]byte {
	var out [3]byte
	copy(out[:], short[8:11])
	return out
}

// createEntry validates path's final component, checks for a name
// collision, finds or makes room for a free slot in the parent directory,
// and writes a fresh FDI there. It returns the new entry's location.
func (m *Mount) createEntry(path string, attr uint8) (DirentLocation, error) {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return DirentLocation{}, err
	}

	if _, ok, err := m.Dir.FindByName(parent, name); err != nil {
		return DirentLocation{}, err
	} else if ok {
		return DirentLocation{}, ErrAlreadyExists
	}

	short, err := ShortName(name)
	if err != nil {
		return DirentLocation{}, err
	}

	loc, ok, err := m.Dir.FindFreeSlot(parent)
	if err != nil {
		return DirentLocation{}, err
	}
	if !ok {
		cluster, err := m.writer.allocateCluster()
		if err != nil {
			return DirentLocation{}, err
		}
		loc, err = m.Dir.ExtendChain(parent, cluster)
		if err != nil {
			return DirentLocation{}, err
		}
		if m.Vol.FreeClusterCount != fsinfoUnknownCount {
			m.Vol.FreeClusterCount--
		}
		if err := m.Vol.persistFSInfo(); err != nil {
			return DirentLocation{}, err
		}
	}

	fdi := FDI{Name: nameField(short), Ext: extField(short), Attr: attr}
	if err := m.Dir.WriteEntry(loc, fdi); err != nil {
		return DirentLocation{}, err
	}
	return loc, nil
}

// Delete removes the file at path: it refuses to delete
// a currently-open file (OpenWhileDelete), destroys the file's cluster
// chain, marks its FDI slot deleted, and evicts any TailCache entry for it.
func (m *Mount) Delete(path string) error {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return err
	}

	entry, ok, err := m.Dir.FindByName(parent, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	if m.Opened.IsOpen(entry.Location) {
		return ErrOpenWhileDelete
	}

	if first := entry.FDI.FirstCluster(); first != 0 {
		freed, err := chainClusterCount(m.Table, first)
		if err != nil {
			return err
		}
		if err := m.Table.DestroyChain(first); err != nil {
			return err
		}
		if m.Vol.FreeClusterCount != fsinfoUnknownCount {
			m.Vol.FreeClusterCount += freed
		}
		m.FreeIdx.Invalidate()
	}

	entry.FDI.Name[0] = direntDeleted
	entry.FDI.SetFirstCluster(0)
	if err := m.Dir.WriteEntry(entry.Location, entry.FDI); err != nil {
		return err
	}

	m.Tail.Forget(entry.Location)
	return m.Vol.persistFSInfo()
}

// chainClusterCount walks the chain starting at start and counts its
// clusters, without modifying anything. Delete calls this before
// DestroyChain so it can credit the exact number of freed clusters back to
// FreeClusterCount.
func chainClusterCount(t *FatTable, start uint32) (uint32, error) {
	count := uint32(0)
	cur := start
	for {
		count++
		entry, err := t.Next(cur)
		if err != nil {
			return 0, err
		}
		if entry == ClusterEndOfChain {
			return count, nil
		}
		if entry == ClusterFree || entry == ClusterReserved {
			return 0, newErrf(KindCorruptChain, "cluster %d has invalid next-pointer 0x%x mid-chain", cur, entry)
		}
		cur = entry
	}
}

// Rename changes the display name of the file at oldPath to the final
// component of newPath, in place, without moving its FDI slot or touching
// its cluster chain
func (m *Mount) Rename(oldPath, newPath string) error {
	parent, oldName, err := m.resolveParent(oldPath)
	if err != nil {
		return err
	}
	newParent, newName, err := m.resolveParent(newPath)
	if err != nil {
		return err
	}
	if newParent != parent {
		return newErr(KindInvalidName, "rename across directories is not supported")
	}

	entry, ok, err := m.Dir.FindByName(parent, oldName)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	if _, exists, err := m.Dir.FindByName(parent, newName); err != nil {
		return err
	} else if exists {
		return ErrAlreadyExists
	}

	short, err := ShortName(newName)
	if err != nil {
		return err
	}

	entry.FDI.Name = nameField(short)
	entry.FDI.Ext = extField(short)
	return m.Dir.WriteEntry(entry.Location, entry.FDI)
}
