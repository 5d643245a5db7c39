// Package fattest provides an in-memory BlockIO implementation for testing
// fat32 without a real block device.
package fattest

import (
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/go-fat32/fat32vol/fat32"
)

// MemoryBlockIO is a fat32.BlockIO backed by a byte slice held entirely in
// memory, for use in tests.
//
// Grounded on dargueta/disko's testing/ fixtures (stream.go's use of
// bytesextra.NewReadWriteSeeker over a plain []byte to fake a block device
// without touching the filesystem), adapted to fat32's ReadSectors/
// WriteSectors/EraseSectors surface instead of disko's io.ReaderAt-based
// BlockDevice.
type MemoryBlockIO struct {
	rws io.ReadWriteSeeker
	data []byte
}

// NewMemoryBlockIO returns a MemoryBlockIO with sectorCount sectors, all
// zeroed.
func NewMemoryBlockIO(sectorCount int) *MemoryBlockIO {
	data := make([]byte, sectorCount*fat32.SectorSize)
	return &MemoryBlockIO{
		rws: bytesextra.NewReadWriteSeeker(data),
		data: data,
	}
}

func (m *MemoryBlockIO) ReadSectors(sectorIndex, sectorCount uint32, out []byte) error {
	if sectorCount == 0 {
		return nil
	}
	offset := int64(sectorIndex) * fat32.SectorSize
	if _, err := m.rws.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(m.rws, out[:int(sectorCount)*fat32.SectorSize])
	return err
}

func (m *MemoryBlockIO) WriteSectors(sectorIndex, sectorCount uint32, in []byte) error {
	if sectorCount == 0 {
		return nil
	}
	offset := int64(sectorIndex) * fat32.SectorSize
	if _, err := m.rws.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := m.rws.Write(in[:int(sectorCount)*fat32.SectorSize])
	return err
}

func (m *MemoryBlockIO) EraseSectors(sectorIndex, sectorCount uint32) error {
	if sectorCount == 0 {
		return nil
	}
	zero := make([]byte, int(sectorCount)*fat32.SectorSize)
	return m.WriteSectors(sectorIndex, sectorCount, zero)
}

// Bytes returns the raw backing buffer, for tests that want to inspect or
// pre-seed on-disk structures directly.
func (m *MemoryBlockIO) Bytes() []byte {
	return m.data
}
