package filesystem

import "github.com/skilanet/FileSystem/checkpoint"

// openMode is the parsed form of an open mode string.
type openMode struct {
	read              bool
	write             bool
	append            bool
	truncate          bool
	createIfNotExists bool
}

// parseMode maps the POSIX-like mode strings to their flag sets. Any other
// string is rejected.
func parseMode(mode string) (openMode, error) {
	switch mode {
	case "r":
		return openMode{read: true}, nil
	case "w":
		return openMode{write: true, truncate: true, createIfNotExists: true}, nil
	case "a":
		return openMode{write: true, append: true, createIfNotExists: true}, nil
	case "r+":
		return openMode{read: true, write: true}, nil
	case "w+":
		return openMode{read: true, write: true, truncate: true, createIfNotExists: true}, nil
	case "a+":
		return openMode{read: true, write: true, append: true, createIfNotExists: true}, nil
	default:
		coreLog.Errorf("invalid open mode %q", mode)
		return openMode{}, checkpoint.From(ErrBadMode)
	}
}
