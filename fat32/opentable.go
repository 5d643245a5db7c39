package fat32

// MaxOpenFiles is the compile-time bound on simultaneously open files,
// enforced by OpenTable
const MaxOpenFiles = 16

// OpenTable is a bounded table of open-file fingerprints, keyed by the
// (fdi_sector, fdi_offset) pair that uniquely identifies an FDI on the
// volume. It enforces the open-count limit and lets Delete
// refuse to remove a file that's currently open.
//
// Grounded on the bookkeeping role dargueta/disko's File/ObjectHandle pair
// plays in api.go, reduced to the flat fingerprint slots since this
// driver has no general object-handle graph (no symlinks, no hardlinks).
type OpenTable struct {
	slots [MaxOpenFiles]DirentLocation
	used [MaxOpenFiles]bool
	count int
}

// NewOpenTable returns an empty OpenTable.
func NewOpenTable() *OpenTable {
	return &OpenTable{}
}

// Open reserves a slot for loc. It fails with TooManyOpen once MaxOpenFiles
// files are open simultaneously.
func (t *OpenTable) Open(loc DirentLocation) (int, error) {
	if t.count >= MaxOpenFiles {
		return -1, newErrf(KindTooManyOpen, "%d files already open (limit %d)", t.count, MaxOpenFiles)
	}
	for i, used := range t.used {
		if !used {
			t.slots[i] = loc
			t.used[i] = true
			t.count++
			return i, nil
		}
	}
	// Unreachable if count is tracked correctly, but fail safe.
	return -1, newErr(KindTooManyOpen, "no free open-file slot")
}

// Close releases the slot returned by a prior Open call.
func (t *OpenTable) Close(slot int) {
	if slot < 0 || slot >= MaxOpenFiles || !t.used[slot] {
		return
	}
	t.used[slot] = false
	t.count--
}

// IsOpen reports whether any open slot's fingerprint matches loc (consulted
// by Delete, which refuses to remove a file that's currently open).
func (t *OpenTable) IsOpen(loc DirentLocation) bool {
	for i, used := range t.used {
		if used && t.slots[i] == loc {
			return true
		}
	}
	return false
}

// Count returns the number of currently open files.
func (t *OpenTable) Count() int { return t.count }
