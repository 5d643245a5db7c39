package fat32

// ClusterRun is a maximal run of contiguous cluster numbers planned for
// allocation Adjacent runs in a write chain are guaranteed
// non-contiguous by construction: the planner merges a newly chosen cluster
// into the previous run whenever it's exactly one past the run's end.
type ClusterRun struct {
	Start uint32
	End uint32 // inclusive
}

// Len returns the number of clusters in the run.
func (r ClusterRun) Len() uint32 { return r.End - r.Start + 1 }

// fileState tracks whether a handle is usable.
type fileState int

const (
	stateClosed fileState = iota
	stateOpen
)

// FileHandle is the driver's open-file object It is
// allocated by Mount.Open and released by Close. Append does not populate
// the writeChain field: it keeps the planned ClusterRun list in a local
// slice that is dropped when the call returns.
type FileHandle struct {
	mount *Mount

	firstCluster uint32
	fileSize uint32

	curReadCluster uint32
	readOffsetInCluster uint32
	remainingToRead uint32

	tailCluster uint32
	tailClusterFreeBytes uint32

	writeChain []ClusterRun

	loc DirentLocation
	slot int

	isDir bool
	state fileState
}

// FirstCluster returns the file's first cluster (0 for an empty file).
func (h *FileHandle) FirstCluster() uint32 { return h.firstCluster }

// Size returns the file's current size in bytes, per the on-disk FDI.
func (h *FileHandle) Size() uint32 { return h.fileSize }

// Location returns the (sector, offset) of the file's FDI.
func (h *FileHandle) Location() DirentLocation { return h.loc }

// TailFreeBytes returns the number of unused bytes remaining in the file's
// tail cluster.
func (h *FileHandle) TailFreeBytes() uint32 { return h.tailClusterFreeBytes }
