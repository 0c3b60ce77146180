package filesystem

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/skilanet/FileSystem/checkpoint"
)

// Seek whence values, matching io.SeekStart, io.SeekCurrent and io.SeekEnd.
const (
	SeekSet = io.SeekStart
	SeekCur = io.SeekCurrent
	SeekEnd = io.SeekEnd
)

// Core composes the volume, the allocators and the directory layer into the
// filesystem itself: mount and format lifecycle, the open-file table and
// the buffered file operations. All access is single-threaded by contract.
type Core struct {
	host afero.Fs

	vol    *Volume
	bitmap *Bitmap
	fat    *FAT
	dir    *Directory

	mounted bool
	header  Header

	handles      map[uint32]*fileHandle
	nextHandleID uint32
}

// New returns a Core backed by the operating system filesystem.
func New() *Core {
	return NewWithHost(afero.NewOsFs())
}

// NewWithHost returns a Core that stores volume files on host. Tests pass
// an afero.NewMemMapFs here.
func NewWithHost(host afero.Fs) *Core {
	return &Core{host: host}
}

// Mounted reports whether a volume is currently mounted.
func (c *Core) Mounted() bool {
	return c.mounted
}

// Header returns the superblock of the mounted volume.
func (c *Core) Header() (Header, error) {
	if !c.mounted {
		return Header{}, checkpoint.From(ErrNotMounted)
	}
	return c.header, nil
}

// FreeClusters returns the number of free data clusters.
func (c *Core) FreeClusters() (uint32, error) {
	if !c.mounted {
		return 0, checkpoint.From(ErrNotMounted)
	}
	return c.bitmap.FreeCount(), nil
}

// Format creates a fresh filesystem of sizeMB mebibytes in the file at
// path. A mounted volume is unmounted first. The volume is closed again
// when formatting finishes; call Mount to use it.
func (c *Core) Format(path string, sizeMB uint64) error {
	if c.mounted {
		c.Unmount()
	}

	sizeBytes := sizeMB * 1024 * 1024
	if sizeBytes == 0 {
		coreLog.Error("volume size cannot be zero")
		return checkpoint.From(ErrVolumeTooSmall)
	}

	vol := NewVolume(c.host)
	header, err := vol.CreateAndFormat(path, sizeBytes)
	if err != nil {
		coreLog.Error("volume creation failed")
		return err
	}

	bitmap := NewBitmap(vol)
	if err := bitmap.InitializeAndFlush(header); err != nil {
		coreLog.Error("bitmap initialization failed")
		vol.Close()
		return err
	}

	fat := NewFAT(vol)
	if err := fat.InitializeAndFlush(header); err != nil {
		coreLog.Error("FAT initialization failed")
		vol.Close()
		return err
	}

	dir := NewDirectory(vol, fat, bitmap)
	if err := dir.InitializeRoot(header); err != nil {
		coreLog.Error("root directory initialization failed")
		vol.Close()
		return err
	}

	vol.Close()
	coreLog.Infof("filesystem formatted in %q (%d MiB)", path, sizeMB)
	return nil
}

// Mount loads the volume at path and brings up the allocators and the
// directory layer. A previously mounted volume is unmounted first.
func (c *Core) Mount(path string) error {
	if c.mounted {
		c.Unmount()
	}

	vol := NewVolume(c.host)
	if err := vol.Load(path); err != nil {
		coreLog.Error("volume load failed")
		return err
	}
	header := vol.Header()

	bitmap := NewBitmap(vol)
	if err := bitmap.Load(&header); err != nil {
		coreLog.Error("bitmap load failed")
		vol.Close()
		return err
	}

	fat := NewFAT(vol)
	if err := fat.Load(&header); err != nil {
		coreLog.Error("FAT load failed")
		vol.Close()
		return err
	}

	c.vol = vol
	c.header = header
	c.bitmap = bitmap
	c.fat = fat
	c.dir = NewDirectory(vol, fat, bitmap)
	c.handles = make(map[uint32]*fileHandle)
	c.nextHandleID = 1
	c.mounted = true

	coreLog.Infof("volume %q mounted", path)
	return nil
}

// Unmount closes every open handle, drops the allocators and closes the
// volume. It is a no-op when nothing is mounted.
func (c *Core) Unmount() {
	if !c.mounted {
		return
	}

	ids := make([]uint32, 0, len(c.handles))
	for id := range c.handles {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := c.CloseFile(id); err != nil {
			coreLog.WithError(err).Warnf("error closing handle %d during unmount", id)
		}
	}

	c.vol.Close()
	c.vol = nil
	c.bitmap = nil
	c.fat = nil
	c.dir = nil
	c.handles = nil
	c.mounted = false

	coreLog.Info("volume unmounted")
}

// fileNameFromPath returns the last path element; resolution is flat under
// the root directory.
func fileNameFromPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// containingDirCluster resolves the directory that holds the named entry.
// The namespace is flat: every name lives under the root directory.
func (c *Core) containingDirCluster(string) uint32 {
	return c.header.RootDirStartCluster
}

// OpenFile opens the file at path with a mode of r, w, a, r+, w+ or a+ and
// returns its handle id. Handle ids start at 1 and are never reused within
// a mount.
func (c *Core) OpenFile(path, mode string) (uint32, error) {
	if !c.mounted {
		coreLog.Error("filesystem not mounted, cannot open file")
		return 0, checkpoint.From(ErrNotMounted)
	}

	flags, err := parseMode(mode)
	if err != nil {
		return 0, err
	}

	name := fileNameFromPath(path)
	if name == "" {
		return 0, checkpoint.From(ErrEmptyName)
	}
	dirCluster := c.containingDirCluster(path)

	var entry DirectoryEntry
	location, err := c.dir.Locate(dirCluster, name)
	switch {
	case err == nil:
		entry = location.Entry
		if entry.Type == EntityDirectory {
			coreLog.Errorf("%q is a directory, cannot open as file", path)
			return 0, checkpoint.From(ErrIsDirectory)
		}
		if flags.truncate {
			if err := c.truncateEntry(dirCluster, name, &entry); err != nil {
				coreLog.Errorf("failed to truncate %q", path)
				return 0, err
			}
		}
	case errors.Is(err, ErrNotFound):
		if !flags.createIfNotExists {
			coreLog.Errorf("file %q not found and mode %q does not allow creation", path, mode)
			return 0, checkpoint.Wrap(err, ErrNotFound)
		}
		entry = DirectoryEntry{Type: EntityFile, FirstCluster: FATEntryFree}
		if err := entry.SetName(name); err != nil {
			return 0, err
		}
		if err := c.dir.AddEntry(dirCluster, entry); err != nil {
			coreLog.Errorf("failed to create entry for %q", path)
			return 0, err
		}
	default:
		return 0, err
	}

	handle := newFileHandle(c.nextHandleID, path, entry, flags.write || flags.append)
	c.nextHandleID++
	c.handles[handle.id] = handle

	var startPos uint64
	if flags.append {
		startPos = uint64(entry.FileSizeBytes)
	}
	if _, err := c.Seek(handle.id, int64(startPos), SeekSet); err != nil {
		coreLog.Warnf("initial seek to %d failed for handle %d (%q)", startPos, handle.id, path)
		delete(c.handles, handle.id)
		return 0, err
	}
	return handle.id, nil
}

// truncateEntry releases every cluster of the entry and resets it to an
// empty file, then persists the directory slot.
func (c *Core) truncateEntry(dirCluster uint32, name string, entry *DirectoryEntry) error {
	if entry.FirstCluster != FATEntryFree && entry.FirstCluster != FATEntryEOF {
		chain := c.fat.Chain(entry.FirstCluster)
		if err := c.fat.FreeChain(entry.FirstCluster); err != nil {
			coreLog.WithError(err).Warnf("errors while freeing the chain of %q", name)
		}
		for _, clusterIdx := range chain {
			if err := c.bitmap.Free(clusterIdx); err != nil {
				coreLog.WithError(err).Warnf("errors while freeing cluster %d of %q", clusterIdx, name)
			}
		}
	}
	entry.FirstCluster = FATEntryFree
	entry.FileSizeBytes = 0
	return c.dir.UpdateEntry(dirCluster, name, *entry)
}

// CloseFile flushes the handle buffer, writes the updated directory entry
// back if the file was modified and removes the handle from the table.
func (c *Core) CloseFile(handleID uint32) error {
	handle, ok := c.handles[handleID]
	if !ok {
		coreLog.Errorf("invalid file handle %d", handleID)
		return checkpoint.From(ErrBadHandle)
	}

	if err := c.flushHandle(handle); err != nil {
		coreLog.Warnf("failed to flush buffer of handle %d", handleID)
	}
	if handle.modified {
		if err := c.updateEntryForHandle(handle); err != nil {
			coreLog.Warnf("failed to update directory entry for handle %d", handleID)
		}
	}
	delete(c.handles, handleID)
	return nil
}

// flushHandle writes the buffered cluster back if it is dirty.
func (c *Core) flushHandle(handle *fileHandle) error {
	if !handle.dirty || handle.bufferedCluster == FATEntryEOF || handle.bufferedCluster == FATEntryFree {
		return nil
	}
	if err := c.vol.WriteCluster(handle.bufferedCluster, handle.buf); err != nil {
		coreLog.Errorf("failed to write buffered cluster %d to disk", handle.bufferedCluster)
		return err
	}
	handle.dirty = false
	return nil
}

// loadCluster brings clusterIdx into the handle buffer, flushing whatever
// was buffered before.
func (c *Core) loadCluster(handle *fileHandle, clusterIdx uint32) error {
	if clusterIdx == FATEntryEOF || clusterIdx == FATEntryFree {
		coreLog.Errorf("attempt to buffer invalid cluster index %d", clusterIdx)
		return checkpoint.From(ErrOutOfBounds)
	}
	if handle.bufferedCluster == clusterIdx {
		return nil
	}
	if err := c.flushHandle(handle); err != nil {
		return err
	}
	if err := c.vol.ReadCluster(clusterIdx, handle.buf); err != nil {
		coreLog.Errorf("failed to read cluster %d into handle buffer", clusterIdx)
		return err
	}
	handle.bufferedCluster = clusterIdx
	handle.dirty = false
	return nil
}

// allocateAndLink grows the handle's file by one cluster and returns its
// index. The first cluster of a file also updates the entry snapshot.
func (c *Core) allocateAndLink(handle *fileHandle) (uint32, error) {
	if !handle.writable {
		coreLog.Error("cannot allocate a cluster for a file not opened for writing")
		return 0, checkpoint.From(ErrReadOnly)
	}

	newCluster, err := c.bitmap.Allocate()
	if err != nil {
		coreLog.Errorf("no free clusters available to extend %q", handle.path)
		return 0, err
	}

	if handle.entry.FirstCluster == FATEntryFree || handle.entry.FirstCluster == FATEntryEOF {
		if err := c.fat.AppendToChain(FATEntryEOF, newCluster); err != nil {
			c.freeClusterQuietly(newCluster)
			return 0, err
		}
		handle.entry.FirstCluster = newCluster
	} else {
		last := handle.currentCluster
		if last == FATEntryFree || last == FATEntryEOF {
			chain := c.fat.Chain(handle.entry.FirstCluster)
			if len(chain) == 0 {
				coreLog.Errorf("%q has a first cluster but an empty chain", handle.path)
				c.freeClusterQuietly(newCluster)
				return 0, checkpoint.From(ErrCorruptedChain)
			}
			last = chain[len(chain)-1]
		}
		if err := c.fat.AppendToChain(last, newCluster); err != nil {
			c.freeClusterQuietly(newCluster)
			return 0, err
		}
	}

	handle.modified = true
	return newCluster, nil
}

func (c *Core) freeClusterQuietly(clusterIdx uint32) {
	if err := c.bitmap.Free(clusterIdx); err != nil {
		coreLog.WithError(err).Errorf("undo failed, cluster %d may leak", clusterIdx)
	}
}

// updateEntryForHandle writes the handle's entry snapshot back into the
// directory.
func (c *Core) updateEntryForHandle(handle *fileHandle) error {
	name := fileNameFromPath(handle.path)
	dirCluster := c.containingDirCluster(handle.path)
	if err := c.dir.UpdateEntry(dirCluster, name, handle.entry); err != nil {
		coreLog.Errorf("failed to update directory entry for %q", handle.path)
		return err
	}
	return nil
}

// ReadFile reads up to len(p) bytes from the handle position. It returns
// io.EOF once the position reaches the file size. A chain that ends before
// the file size is satisfied yields a short read and a warning.
func (c *Core) ReadFile(handleID uint32, p []byte) (int, error) {
	if !c.mounted {
		return 0, checkpoint.From(ErrNotMounted)
	}
	handle, ok := c.handles[handleID]
	if !ok {
		coreLog.Errorf("invalid file handle %d", handleID)
		return 0, checkpoint.From(ErrBadHandle)
	}
	if len(p) == 0 {
		return 0, nil
	}

	fileSize := uint64(handle.entry.FileSizeBytes)
	if handle.pos >= fileSize {
		return 0, io.EOF
	}

	toRead := uint64(len(p))
	if remaining := fileSize - handle.pos; toRead > remaining {
		toRead = remaining
	}

	clusterSize := uint64(c.header.ClusterSize)
	var done uint64
	for done < toRead {
		if handle.currentCluster == FATEntryFree || handle.currentCluster == FATEntryEOF {
			coreLog.Warnf("chain of %q ended %d bytes before its recorded size", handle.path, toRead-done)
			break
		}
		if err := c.loadCluster(handle, handle.currentCluster); err != nil {
			return int(done), err
		}

		n := clusterSize - uint64(handle.offsetInCluster)
		if rest := toRead - done; n > rest {
			n = rest
		}
		copy(p[done:done+n], handle.buf[handle.offsetInCluster:uint64(handle.offsetInCluster)+n])
		done += n
		handle.pos += n
		handle.offsetInCluster += uint32(n)

		if uint64(handle.offsetInCluster) == clusterSize {
			next, err := c.fat.Entry(handle.currentCluster)
			if err != nil {
				return int(done), err
			}
			handle.currentCluster = next
			handle.offsetInCluster = 0
		}
	}
	return int(done), nil
}

// WriteFile writes len(p) bytes at the handle position, allocating and
// linking clusters as the file grows. Dirty data is flushed at cluster
// boundaries; the rest is flushed on seek and close.
func (c *Core) WriteFile(handleID uint32, p []byte) (int, error) {
	if !c.mounted {
		return 0, checkpoint.From(ErrNotMounted)
	}
	handle, ok := c.handles[handleID]
	if !ok {
		coreLog.Errorf("invalid file handle %d", handleID)
		return 0, checkpoint.From(ErrBadHandle)
	}
	if !handle.writable {
		coreLog.Errorf("handle %d is not open for writing", handleID)
		return 0, checkpoint.From(ErrReadOnly)
	}

	clusterSize := uint64(c.header.ClusterSize)
	var done uint64
	for done < uint64(len(p)) {
		if handle.currentCluster == FATEntryFree || handle.currentCluster == FATEntryEOF {
			newCluster, err := c.allocateAndLink(handle)
			if err != nil {
				return int(done), err
			}
			// A fresh cluster starts zeroed in the buffer, no disk read
			// needed. Flush whatever was buffered before repointing.
			if err := c.flushHandle(handle); err != nil {
				return int(done), err
			}
			for i := range handle.buf {
				handle.buf[i] = 0
			}
			handle.bufferedCluster = newCluster
			handle.currentCluster = newCluster
		} else if err := c.loadCluster(handle, handle.currentCluster); err != nil {
			return int(done), err
		}

		n := clusterSize - uint64(handle.offsetInCluster)
		if rest := uint64(len(p)) - done; n > rest {
			n = rest
		}
		copy(handle.buf[handle.offsetInCluster:uint64(handle.offsetInCluster)+n], p[done:done+n])
		handle.dirty = true
		done += n
		handle.pos += n
		handle.offsetInCluster += uint32(n)

		if handle.pos > uint64(handle.entry.FileSizeBytes) {
			handle.entry.FileSizeBytes = uint32(handle.pos)
			handle.modified = true
		}

		if uint64(handle.offsetInCluster) == clusterSize {
			if err := c.flushHandle(handle); err != nil {
				return int(done), err
			}
			next, err := c.fat.Entry(handle.currentCluster)
			if err != nil {
				return int(done), err
			}
			if next == FATEntryFree || next == FATEntryEOF {
				handle.currentCluster = FATEntryEOF
			} else {
				handle.currentCluster = next
			}
			handle.offsetInCluster = 0
		}
	}
	return int(done), nil
}

// Seek moves the handle position. In read-only mode positions past the file
// size clamp to it with a warning. The buffer is flushed and invalidated,
// then the chain is walked from the first cluster to the cluster containing
// the new position.
func (c *Core) Seek(handleID uint32, offset int64, whence int) (int64, error) {
	if !c.mounted {
		return 0, checkpoint.From(ErrNotMounted)
	}
	handle, ok := c.handles[handleID]
	if !ok {
		coreLog.Errorf("invalid file handle %d", handleID)
		return 0, checkpoint.From(ErrBadHandle)
	}

	var target int64
	switch whence {
	case SeekSet:
		target = offset
	case SeekCur:
		target = int64(handle.pos) + offset
	case SeekEnd:
		target = int64(handle.entry.FileSizeBytes) + offset
	default:
		coreLog.Errorf("invalid whence %d", whence)
		return 0, checkpoint.From(ErrBadWhence)
	}
	if target < 0 {
		coreLog.Errorf("seek of handle %d targets negative position %d", handleID, target)
		return 0, checkpoint.From(ErrNegativeSeek)
	}

	newPos := uint64(target)
	if !handle.writable && newPos > uint64(handle.entry.FileSizeBytes) {
		coreLog.Warnf("read-only seek past end of %q, clamping to %d bytes",
			handle.path, handle.entry.FileSizeBytes)
		newPos = uint64(handle.entry.FileSizeBytes)
	}

	if err := c.flushHandle(handle); err != nil {
		return 0, err
	}
	handle.bufferedCluster = FATEntryEOF
	handle.pos = newPos

	first := handle.entry.FirstCluster
	if first == FATEntryFree || first == FATEntryEOF {
		// Empty file: the next write bootstraps the chain.
		handle.currentCluster = FATEntryFree
		handle.offsetInCluster = 0
		return int64(newPos), nil
	}

	clusterSize := uint64(c.header.ClusterSize)
	current := first
	for skip := newPos / clusterSize; skip > 0; skip-- {
		next, err := c.fat.Entry(current)
		if err != nil {
			return 0, err
		}
		if next == FATEntryFree || next == FATEntryEOF {
			// Chain ends before the target; stop at the sentinel so a
			// following write extends from the tail.
			current = next
			break
		}
		current = next
	}
	handle.currentCluster = current
	handle.offsetInCluster = uint32(newPos % clusterSize)
	return int64(newPos), nil
}

// RemoveFile deletes the file at path: the FAT chain is released first,
// while it can still be walked, then the clusters are freed in the bitmap
// and finally the directory slot is cleared.
func (c *Core) RemoveFile(path string) error {
	if !c.mounted {
		return checkpoint.From(ErrNotMounted)
	}

	name := fileNameFromPath(path)
	dirCluster := c.containingDirCluster(path)

	location, err := c.dir.Locate(dirCluster, name)
	if err != nil {
		coreLog.Errorf("file %q not found", path)
		return err
	}
	if location.Entry.Type == EntityDirectory {
		coreLog.Errorf("%q is a directory, use RemoveDirectory", path)
		return checkpoint.From(ErrIsDirectory)
	}

	if location.Entry.FirstCluster != FATEntryFree && location.Entry.FirstCluster != FATEntryEOF {
		chain := c.fat.Chain(location.Entry.FirstCluster)
		if err := c.fat.FreeChain(location.Entry.FirstCluster); err != nil {
			coreLog.WithError(err).Warnf("errors while freeing the chain of %q", path)
		}
		for _, clusterIdx := range chain {
			if err := c.bitmap.Free(clusterIdx); err != nil {
				coreLog.WithError(err).Warnf("errors while freeing cluster %d of %q", clusterIdx, path)
			}
		}
	}

	if err := c.dir.RemoveEntry(dirCluster, name); err != nil {
		coreLog.Errorf("failed to remove directory entry of %q", path)
		return err
	}
	coreLog.Debugf("removed file %q", path)
	return nil
}

// RenameFile renames the entry at oldPath to the base name of newPath.
// Open handles on the file are rewritten to the new path.
func (c *Core) RenameFile(oldPath, newPath string) error {
	if !c.mounted {
		return checkpoint.From(ErrNotMounted)
	}

	oldName := fileNameFromPath(oldPath)
	newName := fileNameFromPath(newPath)
	if newName == "" {
		return checkpoint.From(ErrEmptyName)
	}
	if len(newName) >= MaxFileName {
		return checkpoint.From(ErrNameTooLong)
	}
	dirCluster := c.containingDirCluster(oldPath)

	location, err := c.dir.Locate(dirCluster, oldName)
	if err != nil {
		coreLog.Errorf("entry %q not found", oldPath)
		return err
	}

	updated := location.Entry
	if err := updated.SetName(newName); err != nil {
		return err
	}
	if err := c.dir.UpdateEntry(dirCluster, oldName, updated); err != nil {
		coreLog.Errorf("failed to rename %q to %q", oldPath, newPath)
		return err
	}

	for _, handle := range c.handles {
		if handle.path == oldPath {
			handle.path = newPath
			handle.entry.Name = updated.Name
		}
	}
	coreLog.Debugf("renamed %q to %q", oldPath, newPath)
	return nil
}

// CreateDirectory creates an empty directory entry under the root. The
// sequence is bitmap reserve, FAT terminate, cluster zeroing, publish in
// the parent; any later step failing reverses the earlier ones.
func (c *Core) CreateDirectory(path string) error {
	if !c.mounted {
		return checkpoint.From(ErrNotMounted)
	}

	name := fileNameFromPath(path)
	if name == "" {
		return checkpoint.From(ErrEmptyName)
	}
	if len(name) >= MaxFileName {
		return checkpoint.From(ErrNameTooLong)
	}
	dirCluster := c.containingDirCluster(path)

	if _, err := c.dir.FindEntry(dirCluster, name); err == nil {
		coreLog.Errorf("entry %q already exists", name)
		return checkpoint.From(ErrExists)
	}

	newCluster, err := c.bitmap.Allocate()
	if err != nil {
		coreLog.Errorf("no free clusters to create directory %q", path)
		return err
	}

	if err := c.fat.SetEntry(newCluster, FATEntryEOF); err != nil {
		c.freeClusterQuietly(newCluster)
		return err
	}

	empty := make([]DirectoryEntry, DirEntriesPerCluster)
	if err := c.dir.writeEntries(newCluster, empty); err != nil {
		if undoErr := c.fat.SetEntry(newCluster, FATEntryFree); undoErr != nil {
			coreLog.WithError(undoErr).Errorf("undo failed, entry %d may be stale on disk", newCluster)
		}
		c.freeClusterQuietly(newCluster)
		return err
	}

	entry := DirectoryEntry{Type: EntityDirectory, FirstCluster: newCluster}
	if err := entry.SetName(name); err != nil {
		return err
	}
	if err := c.dir.AddEntry(dirCluster, entry); err != nil {
		coreLog.Errorf("failed to publish directory %q in its parent", path)
		if undoErr := c.fat.SetEntry(newCluster, FATEntryFree); undoErr != nil {
			coreLog.WithError(undoErr).Errorf("undo failed, entry %d may be stale on disk", newCluster)
		}
		c.freeClusterQuietly(newCluster)
		return err
	}
	coreLog.Debugf("created directory %q", path)
	return nil
}

// RemoveDirectory deletes an empty directory: its chain and clusters are
// released and the parent slot is cleared. Non-empty directories are
// rejected.
func (c *Core) RemoveDirectory(path string) error {
	if !c.mounted {
		return checkpoint.From(ErrNotMounted)
	}

	name := fileNameFromPath(path)
	dirCluster := c.containingDirCluster(path)

	location, err := c.dir.Locate(dirCluster, name)
	if err != nil {
		coreLog.Errorf("directory %q not found", path)
		return err
	}
	if location.Entry.Type != EntityDirectory {
		coreLog.Errorf("%q is not a directory", path)
		return checkpoint.From(ErrNotDirectory)
	}

	if location.Entry.FirstCluster != FATEntryFree && location.Entry.FirstCluster != FATEntryEOF {
		entries, err := c.dir.List(location.Entry.FirstCluster)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			coreLog.Errorf("directory %q is not empty", path)
			return checkpoint.From(ErrDirectoryNotEmpty)
		}

		chain := c.fat.Chain(location.Entry.FirstCluster)
		if err := c.fat.FreeChain(location.Entry.FirstCluster); err != nil {
			coreLog.WithError(err).Warnf("errors while freeing the chain of %q", path)
		}
		for _, clusterIdx := range chain {
			if err := c.bitmap.Free(clusterIdx); err != nil {
				coreLog.WithError(err).Warnf("errors while freeing cluster %d of %q", clusterIdx, path)
			}
		}
	}

	if err := c.dir.RemoveEntry(dirCluster, name); err != nil {
		coreLog.Errorf("failed to remove directory entry of %q", path)
		return err
	}
	coreLog.Debugf("removed directory %q", path)
	return nil
}

// ListDirectory returns the live entries of the directory at path. "/"
// lists the root; any other path names a directory under the root.
func (c *Core) ListDirectory(path string) ([]DirectoryEntry, error) {
	if !c.mounted {
		return nil, checkpoint.From(ErrNotMounted)
	}

	if path == "/" || path == "" {
		return c.dir.List(c.header.RootDirStartCluster)
	}

	name := fileNameFromPath(path)
	entry, err := c.dir.FindEntry(c.header.RootDirStartCluster, name)
	if err != nil {
		coreLog.Errorf("directory %q not found", path)
		return nil, err
	}
	if entry.Type != EntityDirectory {
		coreLog.Errorf("%q is not a directory", path)
		return nil, checkpoint.From(ErrNotDirectory)
	}
	return c.dir.List(entry.FirstCluster)
}
