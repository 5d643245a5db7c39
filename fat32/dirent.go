package fat32

import "strings"

// DirentSize is the size in bytes of one on-disk FAT directory entry (FDI).
const DirentSize = 32

// Attribute flags
const (
	AttrReadOnly = 0x01
	AttrHidden = 0x02
	AttrSystem = 0x04
	AttrVolumeID = 0x08
	AttrDirectory = 0x10
	AttrArchive = 0x20
)

// Sentinel values for the first byte of an FDI's name field.
const (
	direntNeverUsed = 0x00
	direntDeleted = 0xE5
)

// FDI is the in-memory, decoded form of a 32-byte on-disk directory entry.
// Field names and layout follow the standard FAT32 short-entry format,
// generalizing dargueta/disko's drivers/fat/dirent.go RawDirent (which
// targets FAT12) to FAT32's 32-bit cluster numbers.
type FDI struct {
	Name           [8]byte
	Ext            [3]byte
	Attr           uint8
	CaseFlags      uint8
	CrtTimeTenth   uint8
	CrtTime        uint16
	CrtDate        uint16
	LastAccessDate uint16
	FirstClusterHi uint16
	WrtTime        uint16
	WrtDate        uint16
	FirstClusterLo uint16
	FileSize       uint32
}

// decodeFDI parses one 32-byte slice into an FDI.
func decodeFDI(b []byte) FDI {
	var d FDI
	copy(d.Name[:], b[0:8])
	copy(d.Ext[:], b[8:11])
	d.Attr = b[11]
	d.CaseFlags = b[12]
	d.CrtTimeTenth = b[13]
	d.CrtTime = getU16(b, 14)
	d.CrtDate = getU16(b, 16)
	d.LastAccessDate = getU16(b, 18)
	d.FirstClusterHi = getU16(b, 20)
	d.WrtTime = getU16(b, 22)
	d.WrtDate = getU16(b, 24)
	d.FirstClusterLo = getU16(b, 26)
	d.FileSize = getU32(b, 28)
	return d
}

// encodeInto serializes d into the 32-byte slice b.
func (d *FDI) encodeInto(b []byte) {
	copy(b[0:8], d.Name[:])
	copy(b[8:11], d.Ext[:])
	b[11] = d.Attr
	b[12] = d.CaseFlags
	b[13] = d.CrtTimeTenth
	putU16(b, 14, d.CrtTime)
	putU16(b, 16, d.CrtDate)
	putU16(b, 18, d.LastAccessDate)
	putU16(b, 20, d.FirstClusterHi)
	putU16(b, 22, d.WrtTime)
	putU16(b, 24, d.WrtDate)
	putU16(b, 26, d.FirstClusterLo)
	putU32(b, 28, d.FileSize)
}

// FirstCluster returns the FDI's first-cluster field as a single 32-bit
// cluster number.
func (d *FDI) FirstCluster() uint32 {
	return (uint32(d.FirstClusterHi) << 16) | uint32(d.FirstClusterLo)
}

// SetFirstCluster splits cluster into the on-disk hi/lo halves.
func (d *FDI) SetFirstCluster(cluster uint32) {
	d.FirstClusterHi = uint16(cluster >> 16)
	d.FirstClusterLo = uint16(cluster & 0xFFFF)
}

// IsDir reports whether the FDI's attribute flags mark it as a directory.
func (d *FDI) IsDir() bool { return d.Attr&AttrDirectory != 0 }

// IsNeverUsed reports whether this slot has never held an entry.
func (d *FDI) IsNeverUsed() bool { return d.Name[0] == direntNeverUsed }

// IsDeleted reports whether this slot held an entry that has been deleted.
func (d *FDI) IsDeleted() bool { return d.Name[0] == direntDeleted }

// IsLive reports whether this slot holds a currently-valid entry.
func (d *FDI) IsLive() bool { return !d.IsNeverUsed() && !d.IsDeleted() }

// DisplayName converts the on-disk 8+3 name into a "NAME.EXT" string: it
// trims trailing spaces from the name, appends "." plus the trimmed
// extension, and omits the dot entirely if the extension is blank.
func (d *FDI) DisplayName() string {
	name := strings.TrimRight(string(d.Name[:]), " ")
	ext := strings.TrimRight(string(d.Ext[:]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// illegalNameChars enumerates the characters disallowed in a
// caller-supplied file name.
const illegalNameChars = `\/:*?"<>|;, `

// ValidateName reports an InvalidName error if name contains any character
// in illegalNameChars, has more than one '.', or is empty.
func ValidateName(name string) error {
	if name == "" {
		return newErr(KindInvalidName, "name is empty")
	}
	if strings.ContainsAny(name, illegalNameChars) {
		return newErrf(KindInvalidName, "name %q contains an illegal character", name)
	}
	if strings.Count(name, ".") > 1 {
		return newErrf(KindInvalidName, "name %q has more than one '.'", name)
	}
	return nil
}

// ShortName generates the 11-byte on-disk 8.3 name for a caller-supplied
// display name. The reserved entries "." and ".." bypass this
// transformation entirely (callers construct those bytes directly).
func ShortName(name string) ([11]byte, error) {
	var out [11]byte
	if err := ValidateName(name); err != nil {
		return out, err
	}

	base := name
	ext := ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		base = name[:i]
		ext = name[i+1:]
	}

	for i := range out {
		out[i] = ' '
	}

	if len(base) <= 8 {
		copy(out[0:8], base)
	} else {
		copy(out[0:7], base[:7])
		out[7] = '~'
	}

	if len(ext) <= 3 {
		copy(out[8:11], ext)
	} else {
		copy(out[8:10], ext[:2])
		out[10] = '~'
	}

	return out, nil
}

// dotEntryName and dotDotEntryName are the fixed 11-byte names used for the
// "." and ".." entries synthesized by CreateDir.
func dotEntryName() [11]byte {
	return [11]byte{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
}

func dotDotEntryName() [11]byte {
	return [11]byte{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
}
