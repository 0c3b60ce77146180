package filesystem

import (
	"encoding/binary"

	"github.com/skilanet/FileSystem/checkpoint"
)

// FAT maps every cluster to the next cluster of its chain, to FATEntryEOF
// for the last cluster of a chain, or to FATEntryFree. The whole table is
// mirrored in memory and written back as one region.
type FAT struct {
	dev   clusterDevice
	table []uint32

	totalClusters uint32
	startCluster  uint32
	sizeClusters  uint32
}

// NewFAT returns a FAT operating on dev. It holds no state until
// InitializeAndFlush or Load is called.
func NewFAT(dev clusterDevice) *FAT {
	return &FAT{dev: dev}
}

// InitializeAndFlush builds a fresh table for a just-formatted volume.
// Every entry is free except the root directory cluster, which becomes a
// one-cluster chain.
func (f *FAT) InitializeAndFlush(header *Header) error {
	f.bindRegion(header)
	if f.totalClusters == 0 {
		fatLog.Error("cannot initialize a table for zero clusters")
		return checkpoint.From(ErrVolumeTooSmall)
	}

	f.table = make([]uint32, f.totalClusters)
	if header.RootDirSizeClusters > 0 && header.RootDirStartCluster < f.totalClusters {
		f.table[header.RootDirStartCluster] = FATEntryEOF
	}

	if err := f.write(); err != nil {
		fatLog.WithError(err).Error("failed to write initialized FAT to disk")
		return err
	}
	fatLog.Debug("initialized and flushed")
	return nil
}

// Load reads the FAT region of a mounted volume into memory.
func (f *FAT) Load(header *Header) error {
	f.bindRegion(header)
	if f.totalClusters == 0 {
		fatLog.Error("cannot load a table for zero clusters")
		return checkpoint.From(ErrVolumeTooSmall)
	}

	f.table = make([]uint32, f.totalClusters)
	if err := f.read(); err != nil {
		fatLog.WithError(err).Error("failed to load FAT from disk")
		return err
	}
	fatLog.Debug("loaded")
	return nil
}

func (f *FAT) bindRegion(header *Header) {
	f.totalClusters = header.TotalClusters
	f.startCluster = header.FATStartCluster
	f.sizeClusters = header.FATSizeClusters
}

// Entry returns the table value for clusterIdx.
func (f *FAT) Entry(clusterIdx uint32) (uint32, error) {
	if clusterIdx >= f.totalClusters || clusterIdx >= uint32(len(f.table)) {
		fatLog.Errorf("cluster index %d out of bounds", clusterIdx)
		return 0, checkpoint.From(ErrOutOfBounds)
	}
	return f.table[clusterIdx], nil
}

// SetEntry updates the table value for clusterIdx and persists the whole
// region. On persist failure the in-memory value is rolled back.
func (f *FAT) SetEntry(clusterIdx uint32, value uint32) error {
	if !f.dev.IsOpen() {
		fatLog.Error("volume not open")
		return checkpoint.From(ErrVolumeNotOpen)
	}
	if clusterIdx >= f.totalClusters || clusterIdx >= uint32(len(f.table)) {
		fatLog.Errorf("cluster index %d out of bounds", clusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}

	old := f.table[clusterIdx]
	f.table[clusterIdx] = value
	if err := f.write(); err != nil {
		f.table[clusterIdx] = old
		fatLog.WithError(err).Errorf("failed to persist FAT after setting entry %d", clusterIdx)
		return err
	}
	return nil
}

// Chain walks the cluster chain starting at startCluster until a sentinel
// or an out-of-range value ends it. A chain longer than the cluster count
// means the table is corrupt; in that case an empty chain is returned.
func (f *FAT) Chain(startCluster uint32) []uint32 {
	var chain []uint32
	if startCluster == FATEntryFree || startCluster == FATEntryEOF || startCluster >= f.totalClusters {
		return chain
	}

	current := startCluster
	for current != FATEntryEOF && current != FATEntryFree && current < f.totalClusters {
		chain = append(chain, current)
		if uint32(len(chain)) > f.totalClusters {
			fatLog.Warnf("loop in cluster chain starting at %d", startCluster)
			return nil
		}
		current = f.table[current]
	}
	return chain
}

// FreeChain walks the chain from startCluster and sets every member to
// free. Success is aggregated over all entries. Freeing from a sentinel is
// a no-op.
func (f *FAT) FreeChain(startCluster uint32) error {
	if startCluster == FATEntryFree || startCluster == FATEntryEOF || startCluster >= f.totalClusters {
		fatLog.Warn("nothing to free")
		return nil
	}

	var toFree []uint32
	current := startCluster
	for current != FATEntryEOF && current != FATEntryFree && current < f.totalClusters {
		toFree = append(toFree, current)
		if uint32(len(toFree)) > f.totalClusters {
			fatLog.Errorf("loop detected while freeing chain starting at %d", startCluster)
			return checkpoint.From(ErrCorruptedChain)
		}
		current = f.table[current]
	}

	var firstErr error
	for _, clusterIdx := range toFree {
		if err := f.SetEntry(clusterIdx, FATEntryFree); err != nil {
			fatLog.Errorf("failed to free FAT entry %d", clusterIdx)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// AppendToChain links newClusterIdx as the new tail after lastClusterIdx.
// The new cluster is terminated first, then the old tail is repointed, so a
// failure in the second step can roll the first one back. Passing a
// sentinel as lastClusterIdx starts a new chain.
func (f *FAT) AppendToChain(lastClusterIdx, newClusterIdx uint32) error {
	if lastClusterIdx != FATEntryFree && lastClusterIdx != FATEntryEOF && lastClusterIdx >= f.totalClusters {
		fatLog.Errorf("invalid last cluster %d", lastClusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}
	if newClusterIdx == FATEntryFree || newClusterIdx == FATEntryEOF || newClusterIdx >= f.totalClusters {
		fatLog.Errorf("invalid new cluster %d", newClusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}

	if err := f.SetEntry(newClusterIdx, FATEntryEOF); err != nil {
		fatLog.Errorf("failed to terminate new cluster %d", newClusterIdx)
		return err
	}

	if lastClusterIdx != FATEntryFree && lastClusterIdx != FATEntryEOF {
		if err := f.SetEntry(lastClusterIdx, newClusterIdx); err != nil {
			fatLog.Errorf("failed to link cluster %d to %d", lastClusterIdx, newClusterIdx)
			if undoErr := f.SetEntry(newClusterIdx, FATEntryFree); undoErr != nil {
				fatLog.WithError(undoErr).Errorf("undo failed, entry %d may be stale on disk", newClusterIdx)
			}
			return err
		}
	}
	return nil
}

// read fills the in-memory table from its disk region.
func (f *FAT) read() error {
	clusterSize := f.dev.ClusterSize()
	raw := make([]byte, uint64(f.sizeClusters)*uint64(clusterSize))

	for i := uint32(0); i < f.sizeClusters; i++ {
		if err := f.dev.ReadCluster(f.startCluster+i, raw[uint64(i)*uint64(clusterSize):]); err != nil {
			fatLog.Errorf("failed to read cluster %d of the FAT region", f.startCluster+i)
			return checkpoint.Wrap(err, ErrReadCluster)
		}
	}
	for i := range f.table {
		f.table[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}
	return nil
}

// write persists the whole in-memory table to its disk region.
func (f *FAT) write() error {
	clusterSize := f.dev.ClusterSize()
	raw := make([]byte, uint64(f.sizeClusters)*uint64(clusterSize))
	for i, value := range f.table {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], value)
	}

	for i := uint32(0); i < f.sizeClusters; i++ {
		if err := f.dev.WriteCluster(f.startCluster+i, raw[uint64(i)*uint64(clusterSize):]); err != nil {
			fatLog.Errorf("failed to write cluster %d of the FAT region", f.startCluster+i)
			return checkpoint.Wrap(err, ErrWriteCluster)
		}
	}
	return nil
}
