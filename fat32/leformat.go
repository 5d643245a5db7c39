package fat32

import "encoding/binary"

// Little-endian field codecs. FAT32 stores every multi-byte field least-
// significant-byte first; these thin wrappers exist so call sites read as
// "get u32 at offset" instead of repeating binary.LittleEndian everywhere,
// matching the convention dargueta/disko's dirent/boot-sector decoders use.

func getU16(b []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(b[offset : offset+2])
}

func getU32(b []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(b[offset : offset+4])
}

func putU16(b []byte, offset int, v uint16) {
	binary.LittleEndian.PutUint16(b[offset:offset+2], v)
}

func putU32(b []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(b[offset:offset+4], v)
}
