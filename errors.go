package filesystem

import "errors"

// These errors may be returned by any operation of the filesystem. They are
// wrapped with checkpoint so callers can still match them with errors.Is.
var (
	ErrNotMounted        = errors.New("filesystem is not mounted")
	ErrVolumeNotOpen     = errors.New("volume is not open")
	ErrBadHandle         = errors.New("invalid file handle")
	ErrBadMode           = errors.New("invalid open mode")
	ErrNameTooLong       = errors.New("name is too long")
	ErrEmptyName         = errors.New("name is empty")
	ErrIsDirectory       = errors.New("entry is a directory")
	ErrNotDirectory      = errors.New("entry is not a directory")
	ErrNotFound          = errors.New("entry not found")
	ErrExists            = errors.New("entry already exists")
	ErrDirectoryNotEmpty = errors.New("directory is not empty")
	ErrNoSpace           = errors.New("no free clusters available")
	ErrOutOfBounds       = errors.New("cluster index out of bounds")
	ErrReadOnly          = errors.New("file is not open for writing")
	ErrNegativeSeek      = errors.New("seek to a negative position")
	ErrBadWhence         = errors.New("invalid seek whence")

	// Integrity failures: the on-disk state disagrees with itself.
	ErrBadSignature   = errors.New("invalid filesystem signature")
	ErrClusterSize    = errors.New("mismatched cluster size")
	ErrVolumeTooSmall = errors.New("volume too small for filesystem structures")
	ErrCorruptedChain = errors.New("corrupted cluster chain")

	ErrReadCluster  = errors.New("could not read cluster")
	ErrWriteCluster = errors.New("could not write cluster")
)
