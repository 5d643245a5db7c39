package fat32

import "github.com/noxer/bytewriter"

// writer implements the two-phase append algorithm of : plan a
// compressed run-length chain of free clusters, write the payload into
// those clusters (plus any room left in the file's tail cluster), then
// stitch the chain into the on-disk FAT in a failure-robust order.
//
// There is no teacher equivalent of this algorithm — dargueta/disko has no
// FAT write path at all — so it is authored fresh, grounded on the cluster-
// to-sector bridging idiom of drivers/common/clusterio.go's ClusterStream
// and the contiguous-run search shape of drivers/common/allocatormap.go's
// findRun, generalized to FAT32's on-disk chain linking.
type writer struct {
	vol *Volume
	table *FatTable
	freeIdx *FreeClusterIndex
	dir *Directory
	tail *TailCache
}

func newWriter(vol *Volume, table *FatTable, freeIdx *FreeClusterIndex, dir *Directory, tail *TailCache) *writer {
	return &writer{vol: vol, table: table, freeIdx: freeIdx, dir: dir, tail: tail}
}

// nextFreeCluster finds and reserves (in the bitmap cache only — no FAT
// write yet) the next free cluster at or after cursor+1, wrapping around
// to the lowest valid cluster if the search runs off the end. It does not
// touch NextFreeHint; callers update that themselves once they've decided
// to keep the cluster.
//
// reserved holds every cluster this same plan has already handed out.
// Planning never writes to the FAT until stitch time, so a cluster reserved
// earlier in this call still reads ClusterFree on disk; without consulting
// reserved, a disk-scan fallback that crosses out of the bitmap cache's
// single covered sector (or wraps around) could hand the same cluster back
// twice instead of reporting ErrOutOfSpace. Pass nil when no prior
// reservations in this call need excluding (e.g. a single-cluster
// allocation).
func (w *writer) nextFreeCluster(cursor uint32, reserved map[uint32]bool) (uint32, error) {
	cluster, ok, err := w.freeIdx.SeekNextFreeInBitmap(cursor + 1)
	if err != nil {
		return 0, err
	}
	if ok && !reserved[cluster] {
		w.freeIdx.MarkOccupied(cluster)
		return cluster, nil
	}

	after := cursor
	seen := map[uint32]bool{}
	for {
		next, ok2, err := w.table.FindNextFree(after)
		if err != nil {
			return 0, err
		}
		if !ok2 || seen[next] {
			return 0, ErrOutOfSpace
		}
		if !reserved[next] {
			if err := w.freeIdx.ensureCovers(next); err != nil {
				return 0, err
			}
			w.freeIdx.MarkOccupied(next)
			return next, nil
		}
		seen[next] = true
		after = next
	}
}

// allocateCluster reserves a single free cluster for immediate use (e.g.
// extending a directory chain or creating a new directory's own cluster).
// It updates NextFreeHint but, like nextFreeCluster, does not link the
// cluster into any chain.
func (w *writer) allocateCluster() (uint32, error) {
	savedHint := w.vol.NextFreeHint
	if savedHint == fsinfoUnknownCount {
		savedHint = ClusterFirstValid - 1
	}

	cluster, err := w.nextFreeCluster(savedHint, nil)
	if err != nil {
		w.vol.NextFreeHint = savedHint
		w.freeIdx.Invalidate()
		return 0, err
	}
	w.vol.NextFreeHint = cluster
	return cluster, nil
}

// planChain builds an ordered list of ClusterRun covering count
// freshly-chosen clusters, merging contiguous choices into a single run per
// the ClusterRun invariant.
func (w *writer) planChain(count uint32) ([]ClusterRun, error) {
	if count == 0 {
		return nil, nil
	}

	savedHint := w.vol.NextFreeHint
	cursor := savedHint
	if cursor == fsinfoUnknownCount {
		cursor = ClusterFirstValid - 1
	}

	reserved := make(map[uint32]bool, count)
	var chain []ClusterRun
	for allocated := uint32(0); allocated < count; allocated++ {
		cluster, err := w.nextFreeCluster(cursor, reserved)
		if err != nil {
			w.vol.NextFreeHint = savedHint
			w.freeIdx.Invalidate()
			return nil, err
		}
		reserved[cluster] = true

		if n := len(chain); n > 0 && chain[n-1].End+1 == cluster {
			chain[n-1].End = cluster
		} else {
			chain = append(chain, ClusterRun{Start: cluster, End: cluster})
		}
		cursor = cluster
	}

	w.vol.NextFreeHint = cursor
	return chain, nil
}

// chainLen returns the total number of clusters spanned by chain.
func chainLen(chain []ClusterRun) uint32 {
	var n uint32
	for _, r := range chain {
		n += r.Len()
	}
	return n
}

// spliceIntoSector reads sector, writes as much of data as fits starting at
// byteOffset using a bytewriter.Writer over the locally-scoped scratch
// buffer (per the Design Notes' rejection of a single shared "buffer1"),
// and writes the sector back. It returns how many bytes of data were
// consumed (capped at the sector boundary).
func spliceIntoSector(dev BlockIO, sector uint32, byteOffset int, data []byte) (int, error) {
	buf, err := readSector(dev, sector)
	if err != nil {
		return 0, err
	}

	room := SectorSize - byteOffset
	n := len(data)
	if n > room {
		n = room
	}

	bw := bytewriter.New(buf[byteOffset:])
	if _, err := bw.Write(data[:n]); err != nil {
		return 0, wrapIOError(err)
	}

	if err := writeSector(dev, sector, buf); err != nil {
		return 0, err
	}
	return n, nil
}

// writeBytesToClusterSequence writes data sequentially into clusters, in
// order, writing whole clusters in one bulk WriteSectors call and padding
// only the final partial sector in a locally-scoped scratch buffer, per
// the "Empty file" and overflow write cases.
func writeBytesToClusterSequence(vol *Volume, clusters []uint32, data []byte) error {
	csz := int(vol.BytesPerCluster())
	pos := 0

	for _, cluster := range clusters {
		if pos >= len(data) {
			break
		}
		sector, err := vol.ClusterToSector(cluster)
		if err != nil {
			return err
		}

		remaining := len(data) - pos
		bytesThisCluster := remaining
		if bytesThisCluster > csz {
			bytesThisCluster = csz
		}

		fullSectors := bytesThisCluster / SectorSize
		if fullSectors > 0 {
			n := fullSectors * SectorSize
			if err := vol.dev.WriteSectors(sector, uint32(fullSectors), data[pos:pos+n]); err != nil {
				return wrapIOError(err)
			}
			pos += n
		}

		partial := bytesThisCluster - fullSectors*SectorSize
		if partial > 0 {
			var scratch [SectorSize]byte
			copy(scratch[:], data[pos:pos+partial])
			if err := vol.dev.WriteSectors(sector+uint32(fullSectors), 1, scratch[:]); err != nil {
				return wrapIOError(err)
			}
			pos += partial
		}
	}

	return nil
}

// flattenChain expands an ordered run list into its individual cluster
// numbers, in chain order.
func flattenChain(chain []ClusterRun) []uint32 {
	var out []uint32
	for _, r := range chain {
		for c := r.Start; c <= r.End; c++ {
			out = append(out, c)
		}
	}
	return out
}

// stitch links predecessor to the head of chain, links every run
// internally, links between runs, and marks the very last cluster
// end-of-chain step 4. It flushes the FAT table after
// every run so a crash mid-stitch leaves the already-linked prefix intact
// on disk (the crash model in).
func (w *writer) stitch(predecessor uint32, chain []ClusterRun) (tail uint32, err error) {
	prev := predecessor
	for _, run := range chain {
		if err := w.table.Set(prev, run.Start); err != nil {
			return 0, err
		}
		for c := run.Start; c < run.End; c++ {
			if err := w.table.Set(c, c+1); err != nil {
				return 0, err
			}
		}
		if err := w.table.Flush(); err != nil {
			return 0, err
		}
		prev = run.End
	}

	if err := w.table.Set(prev, ClusterEndOfChain); err != nil {
		return 0, err
	}
	if err := w.table.Flush(); err != nil {
		return 0, err
	}
	return prev, nil
}

// tailFreeBytesForSize computes the number of unused bytes remaining in the
// tail cluster of a file whose size is size, per the round-trip law
// exercised by scenario 4: a file whose size is an exact
// multiple of the cluster size has a *full*, not empty, tail cluster.
func tailFreeBytesForSize(size, clusterBytes uint32) uint32 {
	if size == 0 {
		return 0
	}
	rem := size % clusterBytes
	if rem == 0 {
		return 0
	}
	return clusterBytes - rem
}

// Append implements end to end for one handle. It is the sole
// mutator of a FileHandle's size/chain bookkeeping outside of Open/Close.
func (w *writer) Append(h *FileHandle, data []byte) error {
	if len(data) == 0 {
		return ErrZeroLength
	}

	csz := w.vol.BytesPerCluster()
	empty := h.firstCluster == 0

	var toAlloc uint32
	switch {
	case empty:
		toAlloc = ceilDiv(uint32(len(data)), csz)
	case uint32(len(data)) <= h.tailClusterFreeBytes:
		toAlloc = 0
	default:
		toAlloc = ceilDiv(uint32(len(data))-h.tailClusterFreeBytes, csz)
	}

	chain, err := w.planChain(toAlloc)
	if err != nil {
		return err
	}
	allocated := chainLen(chain)

	// Step 3: write payload.
	switch {
	case empty:
		if err := writeBytesToClusterSequence(w.vol, flattenChain(chain), data); err != nil {
			return err
		}
	case toAlloc == 0:
		if err := w.writeIntoTail(h, data); err != nil {
			return err
		}
	default:
		headroom := data[:h.tailClusterFreeBytes]
		overflow := data[h.tailClusterFreeBytes:]
		if len(headroom) > 0 {
			if err := w.writeIntoTail(h, headroom); err != nil {
				return err
			}
		}
		if err := writeBytesToClusterSequence(w.vol, flattenChain(chain), overflow); err != nil {
			return err
		}
	}

	// Step 4: stitch the FAT.
	if empty {
		first := chain[0].Start
		h.firstCluster = first
		fdi, err := w.dir.ReadEntry(h.loc)
		if err != nil {
			return err
		}
		fdi.SetFirstCluster(first)
		if err := w.dir.WriteEntry(h.loc, fdi); err != nil {
			return err
		}

		if chain[0].Len() == 1 {
			chain = chain[1:]
		} else {
			chain[0].Start++
		}

		if len(chain) > 0 {
			if _, err := w.stitch(first, chain); err != nil {
				return err
			}
		} else {
			if err := w.table.Set(first, ClusterEndOfChain); err != nil {
				return err
			}
			if err := w.table.Flush(); err != nil {
				return err
			}
		}
	} else if toAlloc > 0 {
		if _, err := w.stitch(h.tailCluster, chain); err != nil {
			return err
		}
	}

	// Step 5: commit.
	newTail, err := w.table.FollowChainFast(h.firstCluster)
	if err != nil {
		return err
	}

	h.fileSize += uint32(len(data))
	h.tailCluster = newTail
	h.tailClusterFreeBytes = tailFreeBytesForSize(h.fileSize, csz)

	fdi, err := w.dir.ReadEntry(h.loc)
	if err != nil {
		return err
	}
	fdi.FileSize = h.fileSize
	if err := w.dir.WriteEntry(h.loc, fdi); err != nil {
		return err
	}

	if w.vol.FreeClusterCount != fsinfoUnknownCount {
		w.vol.FreeClusterCount -= allocated
	}
	if err := w.vol.persistFSInfo(); err != nil {
		return err
	}

	w.tail.Touch(h.loc, newTail)
	return nil
}

// writeIntoTail splices data into the room remaining in h's tail cluster,
// "Existing file, to_alloc = 0" case.
func (w *writer) writeIntoTail(h *FileHandle, data []byte) error {
	csz := w.vol.BytesPerCluster()
	tailUsed := csz - h.tailClusterFreeBytes

	sector0, err := w.vol.ClusterToSector(h.tailCluster)
	if err != nil {
		return err
	}

	sectorInCluster := tailUsed / SectorSize
	byteInSector := int(tailUsed % SectorSize)

	pos := 0
	for pos < len(data) {
		sector := sector0 + sectorInCluster
		n, err := spliceIntoSector(w.vol.dev, sector, byteInSector, data[pos:])
		if err != nil {
			return err
		}
		pos += n
		sectorInCluster++
		byteInSector = 0
	}
	return nil
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
