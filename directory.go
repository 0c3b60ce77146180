package filesystem

import (
	"github.com/skilanet/FileSystem/checkpoint"
)

// Directory stores directories as FAT chains of clusters, each holding
// DirEntriesPerCluster fixed-size entries. A slot whose first name byte is
// EntryNeverUsed or EntryDeleted is free.
type Directory struct {
	dev    clusterDevice
	fat    *FAT
	bitmap *Bitmap
}

// EntryLocation pinpoints a live entry inside a directory chain.
type EntryLocation struct {
	ClusterIdx  uint32
	EntryOffset uint32
	Entry       DirectoryEntry
}

// NewDirectory returns a Directory using dev for cluster I/O, fat for chain
// walks and bitmap for extension.
func NewDirectory(dev clusterDevice, fat *FAT, bitmap *Bitmap) *Directory {
	return &Directory{dev: dev, fat: fat, bitmap: bitmap}
}

// InitializeRoot overwrites the root directory cluster with empty entries.
func (d *Directory) InitializeRoot(header *Header) error {
	if header.RootDirStartCluster == FATEntryFree || header.RootDirStartCluster == FATEntryEOF {
		directoryLog.Errorf("invalid root directory start cluster %d", header.RootDirStartCluster)
		return checkpoint.From(ErrOutOfBounds)
	}

	empty := make([]DirectoryEntry, DirEntriesPerCluster)
	if err := d.writeEntries(header.RootDirStartCluster, empty); err != nil {
		directoryLog.WithError(err).Errorf("failed to write empty entries to root cluster %d",
			header.RootDirStartCluster)
		return err
	}
	directoryLog.Debugf("root directory initialized in cluster %d", header.RootDirStartCluster)
	return nil
}

// List walks the chain of dirStartCluster and returns every live entry.
func (d *Directory) List(dirStartCluster uint32) ([]DirectoryEntry, error) {
	var all []DirectoryEntry
	if dirStartCluster == FATEntryFree || dirStartCluster == FATEntryEOF {
		directoryLog.Warnf("listing from sentinel cluster %d, result is empty", dirStartCluster)
		return all, nil
	}

	for _, clusterIdx := range d.fat.Chain(dirStartCluster) {
		entries, err := d.readEntries(clusterIdx)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if entries[i].inUse() {
				all = append(all, entries[i])
			}
		}
	}
	return all, nil
}

// FindEntry returns the live entry called name, or ErrNotFound.
func (d *Directory) FindEntry(dirStartCluster uint32, name string) (*DirectoryEntry, error) {
	location, err := d.Locate(dirStartCluster, name)
	if err != nil {
		return nil, err
	}
	entry := location.Entry
	return &entry, nil
}

// Locate finds the cluster and slot of the live entry called name. Names of
// MaxFileName bytes or more are rejected up front.
func (d *Directory) Locate(dirStartCluster uint32, name string) (*EntryLocation, error) {
	if len(name) >= MaxFileName {
		directoryLog.Warnf("name of %d bytes is too long for this filesystem", len(name))
		return nil, checkpoint.From(ErrNameTooLong)
	}
	if dirStartCluster == FATEntryFree || dirStartCluster == FATEntryEOF {
		directoryLog.Warnf("cannot locate %q under sentinel cluster %d", name, dirStartCluster)
		return nil, checkpoint.From(ErrNotFound)
	}

	for _, clusterIdx := range d.fat.Chain(dirStartCluster) {
		entries, err := d.readEntries(clusterIdx)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if entries[i].inUse() && entries[i].NameString() == name {
				return &EntryLocation{
					ClusterIdx:  clusterIdx,
					EntryOffset: uint32(i),
					Entry:       entries[i],
				}, nil
			}
		}
	}
	return nil, checkpoint.From(ErrNotFound)
}

// AddEntry places newEntry in the first free slot of the chain. When every
// slot is taken the chain is extended by one cluster and the entry becomes
// slot 0 of the new cluster. Duplicate names are rejected.
func (d *Directory) AddEntry(dirStartCluster uint32, newEntry DirectoryEntry) error {
	if newEntry.Name[0] == EntryNeverUsed {
		directoryLog.Error("cannot add an entry with an empty name")
		return checkpoint.From(ErrEmptyName)
	}
	if dirStartCluster == FATEntryFree || dirStartCluster == FATEntryEOF {
		directoryLog.Errorf("invalid directory start cluster %d", dirStartCluster)
		return checkpoint.From(ErrOutOfBounds)
	}

	if _, err := d.FindEntry(dirStartCluster, newEntry.NameString()); err == nil {
		directoryLog.Errorf("entry %q already exists", newEntry.NameString())
		return checkpoint.From(ErrExists)
	}

	chain := d.fat.Chain(dirStartCluster)
	lastCluster := dirStartCluster
	if len(chain) > 0 {
		lastCluster = chain[len(chain)-1]
	}

	for _, clusterIdx := range chain {
		entries, err := d.readEntries(clusterIdx)
		if err != nil {
			return err
		}
		for i := range entries {
			if entries[i].inUse() {
				continue
			}
			entries[i] = newEntry
			return d.writeEntries(clusterIdx, entries)
		}
	}

	newCluster, err := d.Extend(lastCluster)
	if err != nil {
		directoryLog.Error("failed to extend the directory chain")
		return err
	}
	entries := make([]DirectoryEntry, DirEntriesPerCluster)
	entries[0] = newEntry
	return d.writeEntries(newCluster, entries)
}

// RemoveEntry overwrites the slot of name with a zeroed entry.
func (d *Directory) RemoveEntry(dirStartCluster uint32, name string) error {
	location, err := d.Locate(dirStartCluster, name)
	if err != nil {
		directoryLog.Errorf("entry %q not found for removal", name)
		return err
	}

	entries, err := d.readEntries(location.ClusterIdx)
	if err != nil {
		return err
	}
	entries[location.EntryOffset] = DirectoryEntry{}
	return d.writeEntries(location.ClusterIdx, entries)
}

// UpdateEntry replaces the slot of oldName with updated in place. A rename
// to a name that already exists is rejected.
func (d *Directory) UpdateEntry(dirStartCluster uint32, oldName string, updated DirectoryEntry) error {
	location, err := d.Locate(dirStartCluster, oldName)
	if err != nil {
		directoryLog.Errorf("entry %q not found for update", oldName)
		return err
	}

	newName := updated.NameString()
	if oldName != newName {
		if _, err := d.FindEntry(dirStartCluster, newName); err == nil {
			directoryLog.Errorf("new name %q already exists", newName)
			return checkpoint.From(ErrExists)
		}
	}

	entries, err := d.readEntries(location.ClusterIdx)
	if err != nil {
		return err
	}
	entries[location.EntryOffset] = updated
	return d.writeEntries(location.ClusterIdx, entries)
}

// Extend grows a directory chain by one zeroed cluster and returns its
// index. The sequence is bitmap reserve, FAT link, cluster zeroing; any
// later step failing reverses the earlier ones in reverse order.
func (d *Directory) Extend(lastClusterIdx uint32) (uint32, error) {
	newCluster, err := d.bitmap.Allocate()
	if err != nil {
		directoryLog.Error("no free clusters to extend the directory")
		return 0, err
	}

	if err := d.fat.AppendToChain(lastClusterIdx, newCluster); err != nil {
		directoryLog.Errorf("failed to link new cluster %d after %d", newCluster, lastClusterIdx)
		if undoErr := d.bitmap.Free(newCluster); undoErr != nil {
			directoryLog.WithError(undoErr).Errorf("undo failed, cluster %d may leak", newCluster)
		}
		return 0, err
	}

	empty := make([]DirectoryEntry, DirEntriesPerCluster)
	if err := d.writeEntries(newCluster, empty); err != nil {
		directoryLog.Errorf("failed to initialize new directory cluster %d", newCluster)
		if undoErr := d.fat.SetEntry(lastClusterIdx, FATEntryEOF); undoErr != nil {
			directoryLog.WithError(undoErr).Errorf("undo failed, entry %d may be stale on disk", lastClusterIdx)
		}
		if undoErr := d.fat.SetEntry(newCluster, FATEntryFree); undoErr != nil {
			directoryLog.WithError(undoErr).Errorf("undo failed, entry %d may be stale on disk", newCluster)
		}
		if undoErr := d.bitmap.Free(newCluster); undoErr != nil {
			directoryLog.WithError(undoErr).Errorf("undo failed, cluster %d may leak", newCluster)
		}
		return 0, err
	}
	return newCluster, nil
}

// readEntries decodes all entries of one directory cluster.
func (d *Directory) readEntries(clusterIdx uint32) ([]DirectoryEntry, error) {
	if clusterIdx == FATEntryFree || clusterIdx == FATEntryEOF {
		directoryLog.Errorf("invalid directory cluster index %d", clusterIdx)
		return nil, checkpoint.From(ErrOutOfBounds)
	}

	buf := make([]byte, d.dev.ClusterSize())
	if err := d.dev.ReadCluster(clusterIdx, buf); err != nil {
		directoryLog.Errorf("failed to read directory cluster %d", clusterIdx)
		return nil, checkpoint.Wrap(err, ErrReadCluster)
	}

	entries := make([]DirectoryEntry, DirEntriesPerCluster)
	for i := range entries {
		entries[i] = decodeDirEntry(buf[i*directoryEntrySize:])
	}
	return entries, nil
}

// writeEntries encodes all entries of one directory cluster and writes it
// back. The slack after the last entry stays zeroed.
func (d *Directory) writeEntries(clusterIdx uint32, entries []DirectoryEntry) error {
	if clusterIdx == FATEntryFree || clusterIdx == FATEntryEOF {
		directoryLog.Errorf("invalid directory cluster index %d", clusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}
	if len(entries) != DirEntriesPerCluster {
		directoryLog.Errorf("got %d entries for a cluster holding %d", len(entries), DirEntriesPerCluster)
		return checkpoint.From(ErrOutOfBounds)
	}

	buf := make([]byte, d.dev.ClusterSize())
	for i := range entries {
		encodeDirEntry(&entries[i], buf[i*directoryEntrySize:])
	}

	if err := d.dev.WriteCluster(clusterIdx, buf); err != nil {
		directoryLog.Errorf("failed to write directory cluster %d", clusterIdx)
		return checkpoint.Wrap(err, ErrWriteCluster)
	}
	return nil
}
