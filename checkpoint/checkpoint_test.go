package checkpoint

import (
	"errors"
	"io"
	"strings"
	"testing"
)

var errCause = errors.New("the underlying cause")
var errSentinel = errors.New("a predeclared sentinel")

func TestFrom(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantNil  bool
		wantSame bool
	}{
		{
			name:    "nil stays nil",
			err:     nil,
			wantNil: true,
		},
		{
			name:     "io.EOF is passed through unchanged",
			err:      io.EOF,
			wantSame: true,
		},
		{
			name:     "io.ErrUnexpectedEOF is passed through unchanged",
			err:      io.ErrUnexpectedEOF,
			wantSame: true,
		},
		{
			name: "ordinary error gets decorated",
			err:  errCause,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("From() = %v, want nil", got)
				}
				return
			}
			if tt.wantSame {
				if got != tt.err {
					t.Errorf("From() = %v, want identical %v", got, tt.err)
				}
				return
			}
			if got == tt.err {
				t.Error("From() did not decorate the error")
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("errors.Is(From(err), err) = false for %v", got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, errSentinel) != nil {
		t.Error("Wrap(nil, err) should be nil")
	}
	if Wrap(io.EOF, errSentinel) != io.EOF {
		t.Error("Wrap(io.EOF, err) should stay io.EOF")
	}

	err := Wrap(errCause, errSentinel)
	if !errors.Is(err, errCause) {
		t.Errorf("wrapped error lost the cause: %v", err)
	}
	if !errors.Is(err, errSentinel) {
		t.Errorf("wrapped error lost the sentinel: %v", err)
	}
}

func TestWrapNested(t *testing.T) {
	inner := Wrap(errCause, errSentinel)
	outer := Wrap(inner, errors.New("outer description"))

	if !errors.Is(outer, errCause) || !errors.Is(outer, errSentinel) {
		t.Errorf("nested wrap lost an error from the chain: %v", outer)
	}
	if !strings.Contains(outer.Error(), "checkpoint_test.go") {
		t.Errorf("error text carries no caller information: %v", outer)
	}
}
