package main

import (
	"os"

	"github.com/go-fat32/fat32vol/fat32"
)

// fileBlockIO adapts an *os.File to fat32.BlockIO for the CLI's use against
// real disk image files.
type fileBlockIO struct {
	f *os.File
}

func (b *fileBlockIO) ReadSectors(sectorIndex, sectorCount uint32, out []byte) error {
	if sectorCount == 0 {
		return nil
	}
	_, err := b.f.ReadAt(out[:int(sectorCount)*fat32.SectorSize], int64(sectorIndex)*fat32.SectorSize)
	return err
}

func (b *fileBlockIO) WriteSectors(sectorIndex, sectorCount uint32, in []byte) error {
	if sectorCount == 0 {
		return nil
	}
	_, err := b.f.WriteAt(in[:int(sectorCount)*fat32.SectorSize], int64(sectorIndex)*fat32.SectorSize)
	return err
}

func (b *fileBlockIO) EraseSectors(sectorIndex, sectorCount uint32) error {
	if sectorCount == 0 {
		return nil
	}
	zero := make([]byte, int(sectorCount)*fat32.SectorSize)
	return b.WriteSectors(sectorIndex, sectorCount, zero)
}
