package filesystem

import (
	"io/fs"
	"os"
	"time"
)

// FileInfo returns an os.FileInfo view of the entry.
func (e *DirectoryEntry) FileInfo() os.FileInfo {
	return entryFileInfo{*e}
}

// DirEntry returns an fs.DirEntry view of the entry.
func (e *DirectoryEntry) DirEntry() fs.DirEntry {
	return entryDirEntry{entryFileInfo{*e}}
}

type entryFileInfo struct {
	entry DirectoryEntry
}

func (e entryFileInfo) Name() string {
	return e.entry.NameString()
}

func (e entryFileInfo) Size() int64 {
	return int64(e.entry.FileSizeBytes)
}

func (e entryFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir
	}
	return 0
}

// ModTime is always the zero time, the format stores no timestamps.
func (e entryFileInfo) ModTime() time.Time {
	return time.Time{}
}

func (e entryFileInfo) IsDir() bool {
	return e.entry.Type == EntityDirectory
}

func (e entryFileInfo) Sys() interface{} {
	return e.entry
}

// entryDirEntry carries a snapshot of the entry, so Info never fails even
// if the slot changes on disk afterwards.
type entryDirEntry struct {
	info entryFileInfo
}

func (e entryDirEntry) Name() string               { return e.info.Name() }
func (e entryDirEntry) IsDir() bool                { return e.info.IsDir() }
func (e entryDirEntry) Type() fs.FileMode          { return e.info.Mode().Type() }
func (e entryDirEntry) Info() (fs.FileInfo, error) { return e.info, nil }

// rootFileInfo describes the root directory, which has no entry of its own.
type rootFileInfo struct{}

func (rootFileInfo) Name() string       { return "/" }
func (rootFileInfo) Size() int64        { return 0 }
func (rootFileInfo) Mode() os.FileMode  { return os.ModeDir }
func (rootFileInfo) ModTime() time.Time { return time.Time{} }
func (rootFileInfo) IsDir() bool        { return true }
func (rootFileInfo) Sys() interface{}   { return nil }
