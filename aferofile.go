package filesystem

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/spf13/afero"

	"github.com/skilanet/FileSystem/checkpoint"
)

// These errors may occur while processing a file through the adapter.
var (
	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
	ErrReadDir  = errors.New("could not read the directory")
)

// File is the afero.File over a core handle. Directory files carry no
// handle; they serve Readdir from the directory layer.
type File struct {
	core *Core
	id   uint32
	name string

	isDir  bool
	entry  DirectoryEntry
	dirPos int

	closed bool
}

func (f *File) Close() error {
	if f.closed {
		return checkpoint.From(afero.ErrFileClosed)
	}
	f.closed = true
	if f.isDir {
		return nil
	}
	return f.core.CloseFile(f.id)
}

func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, checkpoint.From(afero.ErrFileClosed)
	}
	if f.isDir {
		return 0, checkpoint.Wrap(syscall.EISDIR, ErrReadFile)
	}
	n, err := f.core.ReadFile(f.id, p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		// The chain ended before the recorded size was satisfied.
		return 0, io.EOF
	}
	return n, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, checkpoint.From(afero.ErrFileClosed)
	}
	old, err := f.core.Seek(f.id, 0, SeekCur)
	if err != nil {
		return 0, checkpoint.Wrap(err, ErrSeekFile)
	}
	if _, err := f.core.Seek(f.id, off, SeekSet); err != nil {
		return 0, checkpoint.Wrap(err, ErrSeekFile)
	}

	var total int
	for total < len(p) {
		n, err := f.Read(p[total:])
		total += n
		if err != nil {
			f.core.Seek(f.id, old, SeekSet)
			return total, err
		}
	}
	if _, err := f.core.Seek(f.id, old, SeekSet); err != nil {
		return total, checkpoint.Wrap(err, ErrSeekFile)
	}
	return total, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, checkpoint.From(afero.ErrFileClosed)
	}
	pos, err := f.core.Seek(f.id, offset, whence)
	if err != nil {
		return 0, checkpoint.Wrap(err, ErrSeekFile)
	}
	return pos, nil
}

func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, checkpoint.From(afero.ErrFileClosed)
	}
	return f.core.WriteFile(f.id, p)
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, checkpoint.From(afero.ErrFileClosed)
	}
	old, err := f.core.Seek(f.id, 0, SeekCur)
	if err != nil {
		return 0, checkpoint.Wrap(err, ErrSeekFile)
	}
	if _, err := f.core.Seek(f.id, off, SeekSet); err != nil {
		return 0, checkpoint.Wrap(err, ErrSeekFile)
	}
	n, werr := f.core.WriteFile(f.id, p)
	if _, err := f.core.Seek(f.id, old, SeekSet); err != nil && werr == nil {
		return n, checkpoint.Wrap(err, ErrSeekFile)
	}
	return n, werr
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *File) Name() string {
	return f.name
}

// Readdir reads the contents of a directory, count entries at a time.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.isDir {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	entries, err := f.core.ListDirectory(f.name)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	if f.dirPos > len(entries) {
		f.dirPos = len(entries)
	}
	rest := entries[f.dirPos:]

	if count <= 0 {
		f.dirPos = len(entries)
		return entryInfos(rest), nil
	}

	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	window := rest[:count]
	f.dirPos += count
	return entryInfos(window), nil
}

// ReadDir implements fs.ReadDirFile over the same listing window Readdir
// uses, so mixed callers see a consistent position.
func (f *File) ReadDir(n int) ([]fs.DirEntry, error) {
	if !f.isDir {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	entries, err := f.core.ListDirectory(f.name)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	if f.dirPos > len(entries) {
		f.dirPos = len(entries)
	}
	rest := entries[f.dirPos:]

	if n <= 0 {
		f.dirPos = len(entries)
		return dirEntryViews(rest), nil
	}

	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	window := rest[:n]
	f.dirPos += n
	return dirEntryViews(window), nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}
	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.isDir {
		if isRootPath(f.name) {
			return rootFileInfo{}, nil
		}
		return f.entry.FileInfo(), nil
	}

	handle, ok := f.core.handles[f.id]
	if !ok {
		return nil, checkpoint.From(ErrBadHandle)
	}
	entry := handle.entry
	return entry.FileInfo(), nil
}

// Sync flushes the handle buffer and persists the directory entry of a
// modified file.
func (f *File) Sync() error {
	if f.closed {
		return checkpoint.From(afero.ErrFileClosed)
	}
	if f.isDir {
		return nil
	}
	handle, ok := f.core.handles[f.id]
	if !ok {
		return checkpoint.From(ErrBadHandle)
	}
	if err := f.core.flushHandle(handle); err != nil {
		return err
	}
	if handle.modified {
		return f.core.updateEntryForHandle(handle)
	}
	return nil
}

// Truncate supports truncation to zero only, matching what the open modes
// of the core can express.
func (f *File) Truncate(size int64) error {
	if f.closed {
		return checkpoint.From(afero.ErrFileClosed)
	}
	if f.isDir {
		return checkpoint.Wrap(syscall.EISDIR, ErrNotSupported)
	}
	if size != 0 {
		return checkpoint.From(ErrNotSupported)
	}

	handle, ok := f.core.handles[f.id]
	if !ok {
		return checkpoint.From(ErrBadHandle)
	}
	if !handle.writable {
		return checkpoint.From(ErrReadOnly)
	}

	name := fileNameFromPath(handle.path)
	dirCluster := f.core.containingDirCluster(handle.path)
	if err := f.core.truncateEntry(dirCluster, name, &handle.entry); err != nil {
		return err
	}
	handle.pos = 0
	handle.bufferedCluster = FATEntryEOF
	handle.dirty = false
	handle.currentCluster = FATEntryFree
	handle.offsetInCluster = 0
	handle.modified = false
	return nil
}

func entryInfos(entries []DirectoryEntry) []os.FileInfo {
	result := make([]os.FileInfo, len(entries))
	for i := range entries {
		result[i] = entries[i].FileInfo()
	}
	return result
}

func dirEntryViews(entries []DirectoryEntry) []fs.DirEntry {
	result := make([]fs.DirEntry, len(entries))
	for i := range entries {
		result[i] = entries[i].DirEntry()
	}
	return result
}
