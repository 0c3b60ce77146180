// Package checkpoint decorates errors with the file and line of the caller,
// building something similar to a stack trace out of ordinary wrapped
// errors. Every error attached to a checkpoint stays visible to errors.Is
// and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps err in a new checkpoint carrying the caller position.
// It returns nil if err is nil.
func From(err error) error {
	if err == nil {
		return nil
	}
	// io.EOF and io.ErrUnexpectedEOF must stay identity-comparable,
	// see https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(nil, err)
}

// Wrap records a checkpoint on top of prev and attaches err to it. The
// typical use is to pass the underlying cause as prev and a predeclared
// sentinel as err:
//
//	var ErrLoadBitmap = errors.New("could not load bitmap")
//
//	func (b *Bitmap) Load() error {
//		return checkpoint.Wrap(b.readFromDisk(), ErrLoadBitmap)
//	}
//
// Callers can then match both the sentinel and the cause with errors.Is.
// Wrap returns nil if prev is nil, and io.EOF unchanged.
func Wrap(prev, err error) error {
	if prev == nil {
		return nil
	}
	if prev == io.EOF {
		return io.EOF
	}

	return newCheckpoint(prev, err)
}

func newCheckpoint(prev, err error) error {
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:      err,
		prev:     prev,
		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

func (c *checkpoint) Error() string {
	at := "unknown"
	if c.callerOk {
		at = fmt.Sprintf("%s:%d", c.file, c.line)
	}

	if c.prev == nil {
		return fmt.Sprintf("File: %s\n\t%v", at, c.err)
	}

	// Indent a non-checkpoint cause so the chain stays readable.
	prevString := c.prev.Error()
	if _, ok := c.prev.(*checkpoint); !ok {
		prevString = "File: unknown\n\t" + strings.ReplaceAll(prevString, "\n", "\n\t")
	}
	return fmt.Sprintf("File: %s\n\t%v\n%v", at, c.err, prevString)
}

func (c *checkpoint) Unwrap() error {
	if c.prev != nil {
		return c.prev
	}
	return c.err
}

func (c *checkpoint) Is(target error) bool {
	return errors.Is(c.err, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return errors.As(c.err, target)
}
