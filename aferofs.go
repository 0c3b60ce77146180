package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/skilanet/FileSystem/checkpoint"
)

// These errors may occur while using the filesystem through the afero
// adapter.
var (
	ErrNotSupported = errors.New("operation not supported by this filesystem")
)

// AferoFs exposes a mounted Core as an afero.Fs. The namespace it serves is
// the same flat-under-root namespace the core resolves.
type AferoFs struct {
	core *Core
}

// NewAferoFs wraps core. The core must be mounted before the adapter is
// used.
func NewAferoFs(core *Core) *AferoFs {
	return &AferoFs{core: core}
}

func (a *AferoFs) Name() string {
	return "FileSystem"
}

func (a *AferoFs) Create(name string) (afero.File, error) {
	id, err := a.core.OpenFile(name, "w+")
	if err != nil {
		return nil, err
	}
	return &File{core: a.core, id: id, name: name}, nil
}

func (a *AferoFs) Mkdir(name string, _ os.FileMode) error {
	return a.core.CreateDirectory(name)
}

// MkdirAll behaves like Mkdir but tolerates an existing directory; the
// namespace is flat so there are no intermediate parents to create.
func (a *AferoFs) MkdirAll(path string, perm os.FileMode) error {
	if _, err := a.core.ListDirectory(path); err == nil {
		return nil
	}
	return a.Mkdir(path, perm)
}

func (a *AferoFs) Open(name string) (afero.File, error) {
	if isRootPath(name) {
		return &File{core: a.core, name: "/", isDir: true}, nil
	}

	root, err := a.rootCluster()
	if err != nil {
		return nil, err
	}
	entry, err := a.core.dir.FindEntry(root, fileNameFromPath(name))
	if err == nil && entry.Type == EntityDirectory {
		return &File{core: a.core, name: name, isDir: true, entry: *entry}, nil
	}

	id, err := a.core.OpenFile(name, "r")
	if err != nil {
		return nil, err
	}
	return &File{core: a.core, id: id, name: name}, nil
}

func (a *AferoFs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	if flag == os.O_RDONLY {
		return a.Open(name)
	}

	mode, retryCreate := modeStringFromFlag(flag)
	id, err := a.core.OpenFile(name, mode)
	if err != nil && retryCreate != "" && errors.Is(err, ErrNotFound) {
		id, err = a.core.OpenFile(name, retryCreate)
	}
	if err != nil {
		return nil, err
	}
	return &File{core: a.core, id: id, name: name}, nil
}

// modeStringFromFlag maps os.OpenFile flags onto the mode strings of the
// core. The second return is a fallback mode to retry with when the file
// does not exist but O_CREATE was given.
func modeStringFromFlag(flag int) (mode string, retryCreate string) {
	write := flag&os.O_WRONLY != 0 || flag&os.O_RDWR != 0

	switch {
	case flag&os.O_APPEND != 0:
		if flag&os.O_RDWR != 0 {
			return "a+", ""
		}
		return "a", ""
	case flag&os.O_TRUNC != 0:
		if flag&os.O_RDWR != 0 {
			return "w+", ""
		}
		return "w", ""
	case write:
		// No truncation requested: open the existing file read-write, fall
		// back to creating it when allowed.
		if flag&os.O_CREATE != 0 {
			return "r+", "w+"
		}
		return "r+", ""
	default:
		return "r", ""
	}
}

func (a *AferoFs) Remove(name string) error {
	root, err := a.rootCluster()
	if err != nil {
		return err
	}
	entry, err := a.core.dir.FindEntry(root, fileNameFromPath(name))
	if err != nil {
		return err
	}
	if entry.Type == EntityDirectory {
		return a.core.RemoveDirectory(name)
	}
	return a.core.RemoveFile(name)
}

func (a *AferoFs) RemoveAll(path string) error {
	err := a.Remove(path)
	if err != nil && errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (a *AferoFs) Rename(oldname, newname string) error {
	return a.core.RenameFile(oldname, newname)
}

func (a *AferoFs) Stat(name string) (os.FileInfo, error) {
	if isRootPath(name) {
		return rootFileInfo{}, nil
	}
	root, err := a.rootCluster()
	if err != nil {
		return nil, err
	}
	entry, err := a.core.dir.FindEntry(root, fileNameFromPath(name))
	if err != nil {
		return nil, err
	}
	return entry.FileInfo(), nil
}

func (a *AferoFs) Chmod(string, os.FileMode) error {
	return checkpoint.Wrap(syscall.EPERM, ErrNotSupported)
}

func (a *AferoFs) Chown(string, int, int) error {
	return checkpoint.Wrap(syscall.EPERM, ErrNotSupported)
}

func (a *AferoFs) Chtimes(string, time.Time, time.Time) error {
	return checkpoint.Wrap(syscall.EPERM, ErrNotSupported)
}

func (a *AferoFs) rootCluster() (uint32, error) {
	header, err := a.core.Header()
	if err != nil {
		return 0, err
	}
	return header.RootDirStartCluster, nil
}

func isRootPath(name string) bool {
	return name == "/" || name == "" || name == "."
}
