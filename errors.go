package trayicon

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorSource tells where an [Error] originates from.
type ErrorSource int

const (
	// SourcePlatform is a failure of the platform: the session bus, the
	// watcher or the operating system.
	SourcePlatform ErrorSource = iota

	// SourceCustom is a failure detected by this package, such as invalid
	// input.
	SourceCustom
)

func (s ErrorSource) String() string {
	switch s {
	case SourcePlatform:
		return "platform"
	case SourceCustom:
		return "custom"
	default:
		return "unknown"
	}
}

var (
	ErrUnsupportedPlatform = errors.New("tray icons are not supported on this platform")
	ErrInvalidDimensions   = errors.New("invalid dimensions")
	ErrNameTaken           = errors.New("name already taken")
	ErrClosed              = errors.New("tray is closed")
)

// Error is returned when a tray or an icon cannot be created.
type Error struct {
	// Op is the operation that failed.
	Op string

	Source ErrorSource

	err error
}

// platformError returns an [Error] caused by the platform. The stack of the
// caller is recorded.
func platformError(op string, cause error) *Error {
	return &Error{Op: op, Source: SourcePlatform, err: pkgerrors.WithStack(cause)}
}

// customError returns an [Error] detected by this package. The stack of the
// caller is recorded.
func customError(op string, cause error) *Error {
	return &Error{Op: op, Source: SourceCustom, err: pkgerrors.WithStack(cause)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, pkgerrors.Cause(e.err))
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return pkgerrors.Cause(e.err)
}

// Location returns file and line of the call that created the error, such as
// "tray.go:42".
func (e *Error) Location() string {
	var st interface {
		StackTrace() pkgerrors.StackTrace
	}

	if !errors.As(e.err, &st) {
		return ""
	}

	frames := st.StackTrace()

	// The first frame is the constructor of the error.
	if len(frames) < 2 {
		return ""
	}

	return fmt.Sprintf("%s:%d", frames[1], frames[1])
}

// Format implements [fmt.Formatter]. The %+v verb prints the stack trace of
// the error.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s (%s error)%+v", e.Error(), e.Source, e.err)
		return
	}

	fmt.Fprint(s, e.Error())
}
