package fat32

import "io"

// Mount ties together a Volume with the components that operate on it:
// the FAT, the free-cluster index, directory traversal, path resolution,
// the open-file table, the tail cache, and the append writer. One Mount
// owns exactly one Volume and must only ever be driven by one goroutine at
// a time.
//
// Grounded on the role dargueta/disko's CommonDriver plays in
// drivers/common/basedriver/driver.go — a single façade wiring a concrete
// file-system implementation to the shared traversal/open/create logic —
// but scoped down to the concrete FAT32 component set this driver needs
// instead of disko's general VFS ObjectHandle/DriverImplementation
// abstraction.
type Mount struct {
	Vol      *Volume
	Table    *FatTable
	FreeIdx  *FreeClusterIndex
	Dir      *Directory
	Resolver *PathResolver
	Opened   *OpenTable
	Tail     *TailCache

	writer *writer
}

// MountImage parses dev and returns a ready-to-use Mount: attaches a BlockIO
// to a volume, then initializes every component that operates on it.
func MountImage(dev BlockIO) (*Mount, error) {
	vol, err := MountVolume(dev)
	if err != nil {
		return nil, err
	}

	table := NewFatTable(vol)
	freeIdx := NewFreeClusterIndex(table)
	dir := NewDirectory(vol, table)
	resolver := NewPathResolver(vol, dir)
	opened := NewOpenTable()
	tail := NewTailCache(TailCacheSize)
	wtr := newWriter(vol, table, freeIdx, dir, tail)

	return &Mount{
		Vol:      vol,
		Table:    table,
		FreeIdx:  freeIdx,
		Dir:      dir,
		Resolver: resolver,
		Opened:   opened,
		Tail:     tail,
		writer:   wtr,
	}, nil
}

// Chdir resolves path and, on success, updates the volume's current
// working directory.
func (m *Mount) Chdir(path string) error {
	cluster, err := m.Resolver.Resolve(path, m.Vol.CWD)
	if err != nil {
		return err
	}
	m.Vol.CWD = cluster
	return nil
}

// resolveParent splits path into its parent directory's cluster and final
// path component, validating the component's name along the way.
func (m *Mount) resolveParent(path string) (parentCluster uint32, name string, err error) {
	parentPath, base := Split(path)
	if err := ValidateName(base); err != nil {
		return 0, "", err
	}

	parentCluster, err = m.Resolver.Resolve(parentPath, m.Vol.CWD)
	if err != nil {
		return 0, "", err
	}
	return parentCluster, base, nil
}

// Open resolves path to an existing file and returns a read/append handle
// for it. It fails with TooManyOpen, NotFound, or InvalidName.
func (m *Mount) Open(path string) (*FileHandle, error) {
	parent, name, err := m.resolveParent(path)
	if err != nil {
		return nil, err
	}

	entry, ok, err := m.Dir.FindByName(parent, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	slot, err := m.Opened.Open(entry.Location)
	if err != nil {
		return nil, err
	}

	h := &FileHandle{
		mount:        m,
		firstCluster: entry.FDI.FirstCluster(),
		fileSize:     entry.FDI.FileSize,
		loc:          entry.Location,
		slot:         slot,
		isDir:        entry.FDI.IsDir(),
		state:        stateOpen,
	}
	h.curReadCluster = h.firstCluster
	h.remainingToRead = h.fileSize

	csz := m.Vol.BytesPerCluster()
	h.tailClusterFreeBytes = tailFreeBytesForSize(h.fileSize, csz)

	if h.firstCluster != 0 {
		tail, ok := m.Tail.Lookup(entry.Location)
		if !ok {
			tail = h.firstCluster
		}
		realTail, err := m.Table.FollowChainFast(tail)
		if err != nil {
			m.Opened.Close(slot)
			return nil, err
		}
		h.tailCluster = realTail
		m.Tail.Touch(entry.Location, realTail)
	}

	return h, nil
}

// Close releases h's slot in the open-file table. Closing an already-closed
// handle is a no-op.
func (m *Mount) Close(h *FileHandle) error {
	if h.state != stateOpen {
		return nil
	}
	m.Opened.Close(h.slot)
	h.state = stateClosed
	return nil
}

// Read fills buf with up to len(buf) bytes starting from h's current read
// position, advancing that position. It returns (0, io.EOF) once the file
// has been read to the end, matching io.Reader's contract.
func (m *Mount) Read(h *FileHandle, buf []byte) (int, error) {
	if h.remainingToRead == 0 {
		return 0, io.EOF
	}

	want := uint32(len(buf))
	if want > h.remainingToRead {
		want = h.remainingToRead
	}

	csz := m.Vol.BytesPerCluster()
	read := uint32(0)
	for read < want {
		sector, err := m.Vol.ClusterToSector(h.curReadCluster)
		if err != nil {
			return int(read), err
		}

		sectorIndex := h.readOffsetInCluster / SectorSize
		byteInSector := h.readOffsetInCluster % SectorSize

		sectorBuf, err := readSector(m.Vol.dev, sector+sectorIndex)
		if err != nil {
			return int(read), err
		}

		n := uint32(SectorSize) - byteInSector
		if remain := want - read; n > remain {
			n = remain
		}
		copy(buf[read:read+n], sectorBuf[byteInSector:byteInSector+n])

		read += n
		h.readOffsetInCluster += n

		if h.readOffsetInCluster >= csz {
			h.readOffsetInCluster = 0
			next, err := m.Table.Next(h.curReadCluster)
			if err != nil {
				return int(read), err
			}
			if next != ClusterEndOfChain {
				h.curReadCluster = next
			}
		}
	}

	h.remainingToRead -= read
	return int(read), nil
}

// Rewind resets h's read position to the beginning of the file.
func (h *FileHandle) Rewind() {
	h.curReadCluster = h.firstCluster
	h.readOffsetInCluster = 0
	h.remainingToRead = h.fileSize
}

// Append appends data to the end of the file h refers to.
func (m *Mount) Append(h *FileHandle, data []byte) error {
	if len(data) == 0 {
		return ErrZeroLength
	}
	return m.writer.Append(h, data)
}
