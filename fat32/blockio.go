package fat32

// SectorSize is the fixed sector size this driver assumes for every block
// device it mounts. FAT32 does not require 512-byte sectors, but the
// embedded targets this driver is written for never expose anything else.
const SectorSize = 512

// BlockIO is the driver's only boundary with the underlying storage medium.
// Implementations are expected to come from outside this package: an SD
// card abstraction, a NOR/NAND flash translation layer, or a plain raw disk
// file for testing (see package fattest).
//
// sectorCount == 0 must be treated as a no-op by ReadSectors and
// WriteSectors. No code in this package calls EraseSectors (the Formatter
// zero-fills regions with WriteSectors), so media that do not distinguish
// erased from zeroed sectors may leave it unimplemented (returning nil).
//
// The core assumes no multi-sector write atomicity: a failing WriteSectors
// call may have committed an unspecified prefix of the requested sectors.
type BlockIO interface {
	// ReadSectors fills out[:sectorCount*SectorSize] with the contents of
	// sectorCount consecutive sectors starting at sectorIndex.
	ReadSectors(sectorIndex uint32, sectorCount uint32, out []byte) error

	// WriteSectors writes in[:sectorCount*SectorSize] to sectorCount
	// consecutive sectors starting at sectorIndex.
	WriteSectors(sectorIndex uint32, sectorCount uint32, in []byte) error

	// EraseSectors marks sectorCount consecutive sectors starting at
	// sectorIndex as erased.
	EraseSectors(sectorIndex uint32, sectorCount uint32) error
}

// readSector is a convenience wrapper for the common case of reading a
// single sector into a freshly allocated, exactly-sized buffer.
func readSector(dev BlockIO, sector uint32) ([]byte, error) {
	buf := make([]byte, SectorSize)
	if err := dev.ReadSectors(sector, 1, buf); err != nil {
		return nil, wrapIOError(err)
	}
	return buf, nil
}

// writeSector is the single-sector counterpart to readSector.
func writeSector(dev BlockIO, sector uint32, data []byte) error {
	if err := dev.WriteSectors(sector, 1, data); err != nil {
		return wrapIOError(err)
	}
	return nil
}
