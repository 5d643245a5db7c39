// Package fat32 implements a FAT32 file system driver for embedded block
// devices that expose a uniform 512-byte sector interface.
//
// The package covers mounting, directory traversal, file creation,
// deletion, rename, sequential read, append-write, directory creation, and
// an optional formatter. It does not implement long file names, timestamps,
// FAT12/FAT16, or concurrent mutation of a single volume.
package fat32
