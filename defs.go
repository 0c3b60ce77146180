// File defs contains the on-disk model of the filesystem: the fixed
// constants, the header (superblock), the directory entry record and the
// little-endian codecs for both. The wire format is written out field by
// field; native struct layout is never relied on.

package filesystem

import (
	"bytes"
	"encoding/binary"
)

const (
	// ClusterSizeBytes is the size of a single cluster. The whole format is
	// built around this value and a mounted volume must match it exactly.
	ClusterSizeBytes = 4096

	// MaxFileName is the size of the name field of a directory entry.
	// Usable names are up to MaxFileName-1 bytes, the rest is NUL padding.
	MaxFileName = 255

	// RootDirectoryClusterCount is the initial size of the root directory.
	RootDirectoryClusterCount = 1

	// MinTotalClusters is the smallest volume that still leaves room for
	// data clusters after the metadata regions.
	MinTotalClusters = 10
)

// FAT sentinels. Any other value is the index of the next cluster in chain.
const (
	FATEntryFree uint32 = 0x00000000
	FATEntryEOF  uint32 = 0xFFFFFFFF
)

// Directory entry name sentinels, stored in the first name byte.
const (
	EntryNeverUsed byte = 0x00
	EntryDeleted   byte = 0xE5
)

// volumeSignature identifies a formatted volume. It is the single canonical
// value used on both the write and the validate path.
var volumeSignature = [16]byte{'F', 'i', 'l', 'e', 'S', 'y', 's', 't', 'e', 'm', ' ', 'v', '1', '.', '0', 0}

// Header is the superblock stored in cluster 0. All region bounds are in
// cluster units and the layout is contiguous:
// [header][bitmap][FAT][root dir][data...].
type Header struct {
	Signature           [16]byte
	VolumeSizeBytes     uint64
	ClusterSize         uint32
	TotalClusters       uint32
	HeaderClusterCount  uint32
	BitmapStartCluster  uint32
	BitmapSizeClusters  uint32
	FATStartCluster     uint32
	FATSizeClusters     uint32
	RootDirStartCluster uint32
	RootDirSizeClusters uint32
	DataStartCluster    uint32
}

// headerSize is the number of bytes the header occupies at the start of
// cluster 0. The rest of the cluster is zero padding.
const headerSize = 16 + 8 + 10*4

// EntityType distinguishes files from directories in a directory entry.
type EntityType uint8

const (
	EntityFile      EntityType = 0
	EntityDirectory EntityType = 1
)

// DirectoryEntry is one fixed-size record of a directory cluster.
// FirstCluster is FATEntryFree while the entity owns no clusters.
type DirectoryEntry struct {
	Name          [MaxFileName]byte
	Type          EntityType
	Reserved      [3]byte
	FirstCluster  uint32
	FileSizeBytes uint32
}

// directoryEntrySize is the on-disk stride of one entry:
// name[255] type[1] reserved[3] firstCluster[4] fileSize[4].
const directoryEntrySize = MaxFileName + 1 + 3 + 4 + 4

// DirEntriesPerCluster is how many entries fit in one directory cluster.
// The slack after the last entry is kept zeroed.
const DirEntriesPerCluster = ClusterSizeBytes / directoryEntrySize

// NameString returns the entry name up to the first NUL byte.
func (e *DirectoryEntry) NameString() string {
	if i := bytes.IndexByte(e.Name[:], 0); i >= 0 {
		return string(e.Name[:i])
	}
	return string(e.Name[:])
}

// SetName stores name NUL-padded. The name must be non-empty and shorter
// than MaxFileName so that at least one padding byte remains.
func (e *DirectoryEntry) SetName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) >= MaxFileName {
		return ErrNameTooLong
	}
	e.Name = [MaxFileName]byte{}
	copy(e.Name[:], name)
	return nil
}

// inUse reports whether the entry names a live entity, i.e. its first name
// byte is neither the never-used nor the deleted sentinel.
func (e *DirectoryEntry) inUse() bool {
	return e.Name[0] != EntryNeverUsed && e.Name[0] != EntryDeleted
}

// encodeHeader writes h into buf, which must hold at least headerSize bytes.
func encodeHeader(h *Header, buf []byte) {
	copy(buf[0:16], h.Signature[:])
	binary.LittleEndian.PutUint64(buf[16:24], h.VolumeSizeBytes)
	binary.LittleEndian.PutUint32(buf[24:28], h.ClusterSize)
	binary.LittleEndian.PutUint32(buf[28:32], h.TotalClusters)
	binary.LittleEndian.PutUint32(buf[32:36], h.HeaderClusterCount)
	binary.LittleEndian.PutUint32(buf[36:40], h.BitmapStartCluster)
	binary.LittleEndian.PutUint32(buf[40:44], h.BitmapSizeClusters)
	binary.LittleEndian.PutUint32(buf[44:48], h.FATStartCluster)
	binary.LittleEndian.PutUint32(buf[48:52], h.FATSizeClusters)
	binary.LittleEndian.PutUint32(buf[52:56], h.RootDirStartCluster)
	binary.LittleEndian.PutUint32(buf[56:60], h.RootDirSizeClusters)
	binary.LittleEndian.PutUint32(buf[60:64], h.DataStartCluster)
}

// decodeHeader reads a header back from buf.
func decodeHeader(buf []byte) Header {
	var h Header
	copy(h.Signature[:], buf[0:16])
	h.VolumeSizeBytes = binary.LittleEndian.Uint64(buf[16:24])
	h.ClusterSize = binary.LittleEndian.Uint32(buf[24:28])
	h.TotalClusters = binary.LittleEndian.Uint32(buf[28:32])
	h.HeaderClusterCount = binary.LittleEndian.Uint32(buf[32:36])
	h.BitmapStartCluster = binary.LittleEndian.Uint32(buf[36:40])
	h.BitmapSizeClusters = binary.LittleEndian.Uint32(buf[40:44])
	h.FATStartCluster = binary.LittleEndian.Uint32(buf[44:48])
	h.FATSizeClusters = binary.LittleEndian.Uint32(buf[48:52])
	h.RootDirStartCluster = binary.LittleEndian.Uint32(buf[52:56])
	h.RootDirSizeClusters = binary.LittleEndian.Uint32(buf[56:60])
	h.DataStartCluster = binary.LittleEndian.Uint32(buf[60:64])
	return h
}

// encodeDirEntry writes e into buf at a directoryEntrySize stride.
func encodeDirEntry(e *DirectoryEntry, buf []byte) {
	copy(buf[0:MaxFileName], e.Name[:])
	buf[MaxFileName] = byte(e.Type)
	copy(buf[MaxFileName+1:MaxFileName+4], e.Reserved[:])
	binary.LittleEndian.PutUint32(buf[MaxFileName+4:MaxFileName+8], e.FirstCluster)
	binary.LittleEndian.PutUint32(buf[MaxFileName+8:MaxFileName+12], e.FileSizeBytes)
}

// decodeDirEntry reads one entry back from buf.
func decodeDirEntry(buf []byte) DirectoryEntry {
	var e DirectoryEntry
	copy(e.Name[:], buf[0:MaxFileName])
	e.Type = EntityType(buf[MaxFileName])
	copy(e.Reserved[:], buf[MaxFileName+1:MaxFileName+4])
	e.FirstCluster = binary.LittleEndian.Uint32(buf[MaxFileName+4 : MaxFileName+8])
	e.FileSizeBytes = binary.LittleEndian.Uint32(buf[MaxFileName+8 : MaxFileName+12])
	return e
}
