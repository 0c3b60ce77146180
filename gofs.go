package filesystem

import (
	"errors"
	"io/fs"
	"sort"
)

// GoFs exposes a mounted Core through the io/fs interfaces. Open hands out
// the same *File values the afero adapter serves; *File satisfies fs.File
// and fs.ReadDirFile on its own. Paths follow the io/fs convention: no
// leading slash, "." names the root.
type GoFs struct {
	afs *AferoFs
}

// NewGoFS wraps core as an fs.FS compatible filesystem. The core must be
// mounted before the wrapper is used.
func NewGoFS(core *Core) *GoFs {
	return &GoFs{afs: NewAferoFs(core)}
}

// Open implements fs.FS. Failures are reported as *fs.PathError so callers
// can match fs.ErrNotExist alongside the filesystem's own sentinels.
func (g *GoFs) Open(name string) (fs.File, error) {
	path, ok := fsPath(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	file, err := g.afs.Open(path)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: pathErrCause(err)}
	}
	return file.(*File), nil
}

// ReadDir implements fs.ReadDirFS straight from the directory layer,
// sorted by name as the interface requires.
func (g *GoFs) ReadDir(name string) ([]fs.DirEntry, error) {
	path, ok := fsPath(name)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	entries, err := g.afs.core.ListDirectory(path)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: pathErrCause(err)}
	}

	list := make([]fs.DirEntry, len(entries))
	for i := range entries {
		list[i] = entries[i].DirEntry()
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list, nil
}

// Stat implements fs.StatFS.
func (g *GoFs) Stat(name string) (fs.FileInfo, error) {
	path, ok := fsPath(name)
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	info, err := g.afs.Stat(path)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: pathErrCause(err)}
	}
	return info, nil
}

// fsPath translates an io/fs path into the adapter's flat namespace.
func fsPath(name string) (string, bool) {
	if !fs.ValidPath(name) {
		return "", false
	}
	if name == "." {
		return "/", true
	}
	return "/" + name, true
}

// pathErrCause maps the filesystem's not-found sentinel onto fs.ErrNotExist
// while keeping everything else (still matchable through errors.Is).
func pathErrCause(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fs.ErrNotExist
	}
	return err
}
