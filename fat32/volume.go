package fat32

import "fmt"

// Cluster reserved values, per FAT32's 28-significant-bit entry encoding.
const (
	ClusterFree = uint32(0)
	ClusterReserved = uint32(1)
	ClusterFirstValid = uint32(2)
	ClusterEndOfChain = uint32(0x0FFFFFFF)
	clusterEntryMask = uint32(0x0FFFFFFF)
	fsinfoLeadSig = uint32(0x41615252)
	fsinfoStructSig = uint32(0x61417272)
	fsinfoTrailSig = uint32(0xAA550000)
	fsinfoUnknownCount = uint32(0xFFFFFFFF)
)

// Volume holds the parsed MBR/DBR/FSINFO state of a single mounted FAT32
// partition, plus the derived geometry every other component needs to turn
// a cluster number into a sector number.
//
// A Volume is owned by exactly one Mount and must not be shared between
// goroutines driving different operations concurrently (see the package's
// single-threaded-per-volume concurrency model).
type Volume struct {
	dev BlockIO

	dbrStartSector    uint32
	fat1StartSector   uint32
	firstDataSector   uint32
	sectorsPerCluster uint32
	fatSizeSectors    uint32
	numFATs           uint32
	rootCluster       uint32
	fsInfoSector      uint32

	totalSectors   uint32
	totalClusters  uint32

	// FreeClusterCount and NextFreeHint mirror the FSINFO sector. They are
	// kept here, not recomputed from the FAT, so updates are O(1); Mount
	// writes them back to FSINFO after every mutation (Writer step 5).
	FreeClusterCount uint32
	NextFreeHint     uint32

	// CWD is the current working directory's first cluster, initialized to
	// the root cluster (2) on mount.
	CWD uint32

	scratch [SectorSize]byte
}

// MountVolume parses sector 0 of dev (and, if it's an MBR, the first active
// partition's DBR) and returns a ready-to-use Volume.
func MountVolume(dev BlockIO) (*Volume, error) {
	sector0, err := readSector(dev, 0)
	if err != nil {
		return nil, err
	}

	dbrStart := uint32(0)
	if !looksLikeDBR(sector0) {
		partStart, err := findActivePartition(sector0)
		if err != nil {
			return nil, err
		}
		dbrStart = partStart
	}

	dbrSector := sector0
	if dbrStart != 0 {
		dbrSector, err = readSector(dev, dbrStart)
		if err != nil {
			return nil, err
		}
	}

	v, err := parseDBR(dbrSector, dbrStart)
	if err != nil {
		return nil, err
	}
	v.dev = dev

	fsInfoRaw, err := readSector(dev, dbrStart+v.fsInfoSector)
	if err != nil {
		return nil, err
	}
	if err := v.parseFSInfo(fsInfoRaw); err != nil {
		return nil, err
	}

	v.CWD = v.rootCluster
	return v, nil
}

// looksLikeDBR reports whether sector 0 is a bare FAT32 DBR rather than an
// MBR: the jump instruction at offset 0 begins EB 58 90
// for FAT32's short-jump-plus-NOP form.
func looksLikeDBR(sector0 []byte) bool {
	return len(sector0) >= 3 && sector0[0] == 0xEB && sector0[1] == 0x58 && sector0[2] == 0x90
}

// findActivePartition scans the four MBR partition table entries at offset
// 446 and returns the start sector of the first one marked active (boot
// indicator 0x80), falling back to the first non-empty entry if none is
// marked active.
func findActivePartition(sector0 []byte) (uint32, error) {
	if getU16(sector0, 510) != 0xAA55 {
		return 0, newErr(KindIOError, "sector 0 has neither a DBR signature nor a valid MBR boot signature")
	}

	fallback := uint32(0)
	haveFallback := false

	for i := 0; i < 4; i++ {
		entry := 446 + 16*i
		bootIndicator := sector0[entry]
		partStart := getU32(sector0, entry+8)
		partSectors := getU32(sector0, entry+12)
		if partSectors == 0 {
			continue
		}
		if bootIndicator == 0x80 {
			return partStart, nil
		}
		if !haveFallback {
			fallback = partStart
			haveFallback = true
		}
	}

	if haveFallback {
		return fallback, nil
	}
	return 0, newErr(KindIOError, "MBR has no partition entries")
}

// parseDBR decodes the BIOS Parameter Block fields this driver needs,
// generalizing dargueta/disko's RawFATBootSectorWithBPB/RawFAT32BootSector
// decode to compute the FAT32-specific derived sector offsets
// requires (fat1, firstData).
func parseDBR(b []byte, dbrStart uint32) (*Volume, error) {
	if len(b) < SectorSize {
		return nil, newErr(KindIOError, "short DBR read")
	}

	bytesPerSector := getU16(b, 11)
	if bytesPerSector != SectorSize {
		return nil, newErrf(KindUnsupportedSize, "bytes-per-sector %d unsupported, only 512 is", bytesPerSector)
	}

	sectorsPerCluster := uint32(b[13])
	if sectorsPerCluster == 0 {
		return nil, newErr(KindIOError, "corrupt DBR: sectors-per-cluster is 0")
	}
	reservedSectors := uint32(getU16(b, 14))
	numFATs := uint32(b[16])
	if numFATs == 0 {
		return nil, newErr(KindIOError, "corrupt DBR: NumFATs is 0")
	}

	totalSectors16 := uint32(getU16(b, 19))
	totalSectors32 := getU32(b, 32)
	totalSectors := totalSectors32
	if totalSectors16 != 0 {
		totalSectors = totalSectors16
	}

	fatSize32 := getU32(b, 36)
	rootCluster := getU32(b, 44)
	fsInfoSector := uint32(getU16(b, 48))

	fat1 := dbrStart + reservedSectors
	firstData := fat1 + numFATs*fatSize32

	if firstData >= dbrStart+totalSectors {
		return nil, newErr(KindIOError, "corrupt DBR: first data sector is past the end of the volume")
	}

	totalDataSectors := (dbrStart + totalSectors) - firstData
	totalClusters := totalDataSectors / sectorsPerCluster

	return &Volume{
		dbrStartSector: dbrStart,
		fat1StartSector: fat1,
		firstDataSector: firstData,
		sectorsPerCluster: sectorsPerCluster,
		fatSizeSectors: fatSize32,
		numFATs: numFATs,
		rootCluster: rootCluster,
		fsInfoSector: fsInfoSector,
		totalSectors: totalSectors,
		totalClusters: totalClusters,
	}, nil
}

func (v *Volume) parseFSInfo(b []byte) error {
	if getU32(b, 0) != fsinfoLeadSig || getU32(b, 484) != fsinfoStructSig || getU32(b, 508) != fsinfoTrailSig {
		// Some formatters leave FSINFO uninitialized; fall back to treating
		// the hint/count as unknown rather than failing the mount.
		v.FreeClusterCount = fsinfoUnknownCount
		v.NextFreeHint = fsinfoUnknownCount
		return nil
	}

	v.FreeClusterCount = getU32(b, 488)
	v.NextFreeHint = getU32(b, 492)
	return nil
}

// persistFSInfo writes the current FreeClusterCount/NextFreeHint back to
// the on-disk FSINFO sector. Called by Writer step 5 after every mutation.
func (v *Volume) persistFSInfo() error {
	buf, err := readSector(v.dev, v.dbrStartSector+v.fsInfoSector)
	if err != nil {
		return err
	}
	putU32(buf, 0, fsinfoLeadSig)
	putU32(buf, 484, fsinfoStructSig)
	putU32(buf, 488, v.FreeClusterCount)
	putU32(buf, 492, v.NextFreeHint)
	putU32(buf, 508, fsinfoTrailSig)
	return writeSector(v.dev, v.dbrStartSector+v.fsInfoSector, buf)
}

// ClusterToSector converts a cluster number to the sector holding its first
// byte: sector = (c-2)*sectors_per_cluster + first_data.
func (v *Volume) ClusterToSector(cluster uint32) (uint32, error) {
	if cluster < ClusterFirstValid || cluster >= ClusterFirstValid+v.totalClusters {
		return 0, newErrf(KindCorruptChain, "cluster %d out of range [2, %d)", cluster, ClusterFirstValid+v.totalClusters)
	}
	return v.firstDataSector + (cluster-ClusterFirstValid)*v.sectorsPerCluster, nil
}

// ClusterToFATSector returns the FAT sector containing cluster's entry and
// the byte offset of that entry within the sector
func (v *Volume) ClusterToFATSector(cluster uint32) (sector uint32, offset int) {
	byteOffset := uint64(cluster) * 4
	sector = v.fat1StartSector + uint32(byteOffset/SectorSize)
	offset = int(byteOffset % SectorSize)
	return
}

// SectorsPerCluster returns the number of 512-byte sectors in one cluster.
func (v *Volume) SectorsPerCluster() uint32 { return v.sectorsPerCluster }

// BytesPerCluster returns sectorsPerCluster*512.
func (v *Volume) BytesPerCluster() uint32 { return v.sectorsPerCluster * SectorSize }

// RootCluster returns the cluster number of the root directory (always 2).
func (v *Volume) RootCluster() uint32 { return v.rootCluster }

// TotalClusters returns the number of data clusters on the volume.
func (v *Volume) TotalClusters() uint32 { return v.totalClusters }

// MaxCluster returns the highest valid data cluster number.
func (v *Volume) MaxCluster() uint32 { return ClusterFirstValid + v.totalClusters - 1 }

// FATSectorCount returns the number of sectors occupied by a single copy of
// the FAT.
func (v *Volume) FATSectorCount() uint32 { return v.fatSizeSectors }

// FAT1Start returns the starting sector of the first FAT copy.
func (v *Volume) FAT1Start() uint32 { return v.fat1StartSector }

// NumFATs returns the number of FAT copies maintained on this volume.
func (v *Volume) NumFATs() uint32 { return v.numFATs }

func (v *Volume) String() string {
	return fmt.Sprintf(
		"Volume{fat1=%d firstData=%d spc=%d totalClusters=%d free=%d}",
		v.fat1StartSector, v.firstDataSector, v.sectorsPerCluster, v.totalClusters, v.FreeClusterCount)
}
