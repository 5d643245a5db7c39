//go:build fat32format

package fat32

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"
)

// format.go implements the optional Formatter component, compiled in only
// when the fat32format build tag is set — a compile-time feature flag for
// code an embedded target may not want to carry once a volume ships
// pre-formatted.
//
// Grounded on dargueta/disko's disks/disks.go gocsv.UnmarshalToCallback
// pattern for the cluster-size recommendation table, and on the absence of
// any multierror usage anywhere in dargueta/disko's own tree despite being
// a go.mod require — here it earns a real job aggregating the independent
// region-write failures below.

// clusterSizeRule is one row of the recommended sectors-per-cluster table:
// "512 B up to 64 MiB, 1 KiB to 128 MiB, ...".
type clusterSizeRule struct {
	MaxVolumeBytes    int64  `csv:"max_volume_bytes"`
	SectorsPerCluster uint32 `csv:"sectors_per_cluster"`
}

//go:embed cluster_size_table.csv
var clusterSizeRawCSV string

var clusterSizeRules []clusterSizeRule

func init() {
	if err := gocsv.UnmarshalToCallback(strings.NewReader(clusterSizeRawCSV), func(row clusterSizeRule) error {
		clusterSizeRules = append(clusterSizeRules, row)
		return nil
	}); err != nil {
		panic(fmt.Sprintf("fat32: malformed embedded cluster size table: %s", err))
	}
}

// RecommendedSectorsPerCluster returns the sectors-per-cluster FAT32
// formatting tools conventionally choose for a volume of totalBytes, per
// the table.
func RecommendedSectorsPerCluster(totalBytes int64) uint32 {
	for _, rule := range clusterSizeRules {
		if totalBytes <= rule.MaxVolumeBytes {
			return rule.SectorsPerCluster
		}
	}
	return clusterSizeRules[len(clusterSizeRules)-1].SectorsPerCluster
}

// FormatOptions configures Format.
type FormatOptions struct {
	TotalSectors      uint32
	SectorsPerCluster uint32 // 0 selects RecommendedSectorsPerCluster
	ReservedSectors   uint32 // 0 defaults to 32
	NumFATs           uint32 // 0 defaults to 2
	VolumeLabel       string
}

// Format writes a fresh FAT32 volume to dev: a DBR built
// from a template, a zero-filled FAT region seeded with the three
// mandatory initial entries, a zeroed root cluster carrying the initial
// volume-label FDI, and an FSINFO sector reflecting the resulting free
// space. Each region is written independently and a failure in one does
// not prevent the others from being attempted; all failures are reported
// together.
func Format(dev BlockIO, opts FormatOptions) error {
	if opts.ReservedSectors == 0 {
		opts.ReservedSectors = 32
	}
	if opts.NumFATs == 0 {
		opts.NumFATs = 2
	}
	if opts.SectorsPerCluster == 0 {
		opts.SectorsPerCluster = RecommendedSectorsPerCluster(int64(opts.TotalSectors) * SectorSize)
	}

	// fatSizeSectors and totalClusters are mutually dependent (a bigger FAT
	// region leaves fewer data sectors, which needs a smaller FAT); a few
	// rounds of fixed-point iteration converge on a consistent pair.
	fatSizeSectors := uint32(1)
	var totalClusters uint32
	for i := 0; i < 4; i++ {
		dataSectors := opts.TotalSectors - opts.ReservedSectors - opts.NumFATs*fatSizeSectors
		totalClusters = dataSectors / opts.SectorsPerCluster
		next := ceilDiv(totalClusters*4, SectorSize) + 1
		if next == fatSizeSectors {
			break
		}
		fatSizeSectors = next
	}

	var result *multierror.Error

	if err := writeDBR(dev, opts, fatSizeSectors); err != nil {
		result = multierror.Append(result, fmt.Errorf("DBR: %w", err))
	}
	if err := writeInitialFAT(dev, opts, fatSizeSectors); err != nil {
		result = multierror.Append(result, fmt.Errorf("FAT region: %w", err))
	}

	firstDataSector := opts.ReservedSectors + opts.NumFATs*fatSizeSectors
	rootSector := firstDataSector
	if err := writeRootCluster(dev, opts, rootSector); err != nil {
		result = multierror.Append(result, fmt.Errorf("root cluster: %w", err))
	}

	freeClusters := totalClusters - 1 // cluster 2 is the root
	if err := writeFSInfo(dev, opts, freeClusters); err != nil {
		result = multierror.Append(result, fmt.Errorf("FSINFO: %w", err))
	}

	return result.ErrorOrNil()
}

func writeDBR(dev BlockIO, opts FormatOptions, fatSizeSectors uint32) error {
	buf := make([]byte, SectorSize)
	buf[0], buf[1], buf[2] = 0xEB, 0x58, 0x90
	copy(buf[3:11], "FAT32 ")
	putU16(buf, 11, SectorSize)
	buf[13] = byte(opts.SectorsPerCluster)
	putU16(buf, 14, uint16(opts.ReservedSectors))
	buf[16] = byte(opts.NumFATs)
	putU32(buf, 32, opts.TotalSectors)
	putU32(buf, 36, fatSizeSectors)
	putU32(buf, 44, ClusterFirstValid)
	putU16(buf, 48, 1) // FSINFO at reserved-sector 1, per convention
	putU16(buf, 510, 0xAA55)
	return writeSector(dev, 0, buf)
}

func writeInitialFAT(dev BlockIO, opts FormatOptions, fatSizeSectors uint32) error {
	buf := make([]byte, SectorSize)
	putU32(buf, 0, 0x0FFFFFF8) // media descriptor + reserved
	putU32(buf, 4, ClusterEndOfChain)
	putU32(buf, 8, ClusterEndOfChain) // root directory, cluster 2

	for copyIdx := uint32(0); copyIdx < opts.NumFATs; copyIdx++ {
		base := opts.ReservedSectors + copyIdx*fatSizeSectors
		if err := writeSector(dev, base, buf); err != nil {
			return err
		}
		zero := make([]byte, SectorSize)
		for s := uint32(1); s < fatSizeSectors; s++ {
			if err := writeSector(dev, base+s, zero); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeRootCluster(dev BlockIO, opts FormatOptions, rootSector uint32) error {
	zero := make([]byte, uint32(opts.SectorsPerCluster)*SectorSize)
	if err := dev.WriteSectors(rootSector, opts.SectorsPerCluster, zero); err != nil {
		return wrapIOError(err)
	}

	if opts.VolumeLabel == "" {
		return nil
	}

	var nameBytes [11]byte
	for i := range nameBytes {
		nameBytes[i] = ' '
	}
	copy(nameBytes[:], opts.VolumeLabel)

	fdi := FDI{Attr: AttrVolumeID}
	copy(fdi.Name[:], nameBytes[:8])
	copy(fdi.Ext[:], nameBytes[8:11])

	buf, err := readSector(dev, rootSector)
	if err != nil {
		return err
	}
	fdi.encodeInto(buf[0:DirentSize])
	return writeSector(dev, rootSector, buf)
}

func writeFSInfo(dev BlockIO, opts FormatOptions, freeClusters uint32) error {
	buf := make([]byte, SectorSize)
	putU32(buf, 0, fsinfoLeadSig)
	putU32(buf, 484, fsinfoStructSig)
	putU32(buf, 488, freeClusters)
	putU32(buf, 492, ClusterFirstValid)
	putU32(buf, 508, fsinfoTrailSig)
	// Sector 1, matching the fsInfoSector field writeDBR encoded at DBR
	// offset 48 (relative to the DBR's own start sector).
	return writeSector(dev, 1, buf)
}
