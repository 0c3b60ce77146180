package filesystem

import (
	"github.com/skilanet/FileSystem/checkpoint"
)

// Bitmap tracks the allocation state of every cluster, one bit each,
// LSB-first within each byte. The in-memory copy and the on-disk region
// agree after every successful operation.
type Bitmap struct {
	dev  clusterDevice
	bits []byte

	totalClusters uint32
	startCluster  uint32
	sizeClusters  uint32
	dataStart     uint32
}

// NewBitmap returns a Bitmap operating on dev. It holds no state until
// InitializeAndFlush or Load is called.
func NewBitmap(dev clusterDevice) *Bitmap {
	return &Bitmap{dev: dev}
}

// InitializeAndFlush builds a fresh bitmap for a just-formatted volume:
// every metadata cluster (header, bitmap, FAT, root directory) is marked
// allocated, all data clusters are free. The result is written out.
func (b *Bitmap) InitializeAndFlush(header *Header) error {
	b.bindRegion(header)
	b.bits = make([]byte, (b.totalClusters+7)/8)

	for i := uint32(0); i < header.HeaderClusterCount; i++ {
		b.setBit(i)
	}
	for i := uint32(0); i < header.BitmapSizeClusters; i++ {
		b.setBit(header.BitmapStartCluster + i)
	}
	for i := uint32(0); i < header.FATSizeClusters; i++ {
		b.setBit(header.FATStartCluster + i)
	}
	for i := uint32(0); i < header.RootDirSizeClusters; i++ {
		b.setBit(header.RootDirStartCluster + i)
	}

	if err := b.flush(); err != nil {
		bitmapLog.WithError(err).Error("failed to write initialized bitmap to disk")
		return err
	}
	bitmapLog.Debug("initialized and flushed")
	return nil
}

// Load reads the bitmap region of a mounted volume into memory.
func (b *Bitmap) Load(header *Header) error {
	b.bindRegion(header)
	b.bits = make([]byte, (b.totalClusters+7)/8)

	if err := b.read(); err != nil {
		bitmapLog.WithError(err).Error("failed to load bitmap from disk")
		return err
	}
	bitmapLog.Debug("loaded")
	return nil
}

func (b *Bitmap) bindRegion(header *Header) {
	b.totalClusters = header.TotalClusters
	b.startCluster = header.BitmapStartCluster
	b.sizeClusters = header.BitmapSizeClusters
	b.dataStart = header.DataStartCluster
}

// Allocate scans the data region for the first free cluster, marks it used
// and flushes the bitmap. On flush failure the bit is cleared again.
func (b *Bitmap) Allocate() (uint32, error) {
	if !b.dev.IsOpen() {
		bitmapLog.Error("volume not open")
		return 0, checkpoint.From(ErrVolumeNotOpen)
	}

	for i := b.dataStart; i < b.totalClusters; i++ {
		if b.bit(i) {
			continue
		}
		b.setBit(i)
		if err := b.flush(); err != nil {
			b.clearBit(i)
			bitmapLog.WithError(err).Errorf("failed to persist bitmap after allocating cluster %d", i)
			return 0, err
		}
		return i, nil
	}

	bitmapLog.Warn("no free clusters found")
	return 0, checkpoint.From(ErrNoSpace)
}

// Free clears the bit of a data cluster and flushes. Metadata clusters are
// protected and cannot be freed. Freeing an already-free cluster is only a
// warning.
func (b *Bitmap) Free(clusterIdx uint32) error {
	if !b.dev.IsOpen() {
		bitmapLog.Error("volume not open")
		return checkpoint.From(ErrVolumeNotOpen)
	}
	if clusterIdx >= b.totalClusters {
		bitmapLog.Errorf("cluster index %d out of bounds", clusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}
	if clusterIdx < b.dataStart {
		bitmapLog.Errorf("refusing to free metadata cluster %d", clusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}

	if !b.bit(clusterIdx) {
		bitmapLog.Warnf("cluster %d is already free", clusterIdx)
	}

	b.clearBit(clusterIdx)
	if err := b.flush(); err != nil {
		bitmapLog.WithError(err).Errorf("failed to persist bitmap after freeing cluster %d", clusterIdx)
		return err
	}
	return nil
}

// IsFree reports whether clusterIdx is unallocated. Out-of-range indexes
// are never free.
func (b *Bitmap) IsFree(clusterIdx uint32) bool {
	if clusterIdx >= b.totalClusters {
		return false
	}
	return !b.bit(clusterIdx)
}

// FreeCount returns the number of free clusters in the data region.
func (b *Bitmap) FreeCount() uint32 {
	var n uint32
	for i := b.dataStart; i < b.totalClusters; i++ {
		if !b.bit(i) {
			n++
		}
	}
	return n
}

func (b *Bitmap) setBit(clusterIdx uint32) {
	if clusterIdx >= b.totalClusters {
		return
	}
	b.bits[clusterIdx/8] |= 1 << (clusterIdx % 8)
}

func (b *Bitmap) clearBit(clusterIdx uint32) {
	if clusterIdx >= b.totalClusters {
		return
	}
	b.bits[clusterIdx/8] &^= 1 << (clusterIdx % 8)
}

func (b *Bitmap) bit(clusterIdx uint32) bool {
	return b.bits[clusterIdx/8]>>(clusterIdx%8)&1 == 1
}

// read fills the in-memory bitmap from its disk region.
func (b *Bitmap) read() error {
	clusterSize := b.dev.ClusterSize()
	raw := make([]byte, uint64(b.sizeClusters)*uint64(clusterSize))

	for i := uint32(0); i < b.sizeClusters; i++ {
		if err := b.dev.ReadCluster(b.startCluster+i, raw[uint64(i)*uint64(clusterSize):]); err != nil {
			bitmapLog.Errorf("failed to read cluster %d of the bitmap region", b.startCluster+i)
			return checkpoint.Wrap(err, ErrReadCluster)
		}
	}
	copy(b.bits, raw)
	return nil
}

// flush writes the whole in-memory bitmap back to its disk region,
// zero-padded up to the cluster boundary.
func (b *Bitmap) flush() error {
	clusterSize := b.dev.ClusterSize()
	raw := make([]byte, uint64(b.sizeClusters)*uint64(clusterSize))
	copy(raw, b.bits)

	for i := uint32(0); i < b.sizeClusters; i++ {
		if err := b.dev.WriteCluster(b.startCluster+i, raw[uint64(i)*uint64(clusterSize):]); err != nil {
			bitmapLog.Errorf("failed to write cluster %d of the bitmap region", b.startCluster+i)
			return checkpoint.Wrap(err, ErrWriteCluster)
		}
	}
	return nil
}
