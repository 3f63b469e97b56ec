package docstream

import (
	"errors"
	"fmt"
)

// ErrUnexpectedEnd is wrapped by codec errors reporting truncated input.
var ErrUnexpectedEnd = errors.New("unexpected end of input")

// CodecError reports malformed data on the wire. After a CodecError the
// document tree that produced it is poisoned: every subsequent operation
// returns the same error.
type CodecError struct {
	Format string
	Off    int64
	Msg    string
	Err    error
}

// CodecErrf builds a CodecError for the given format at the given byte
// offset. cause may be nil.
func CodecErrf(format string, off int64, cause error, msg string, args ...any) error {
	return &CodecError{format, off, fmt.Sprintf(msg, args...), cause}
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: offset %d: %s: %v", e.Format, e.Off, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: offset %d: %s", e.Format, e.Off, e.Msg)
}

// MisuseError reports a caller-side contract violation: advancing a parent
// while a child is open, writing past a declared size, breaking map key/value
// alternation, touching a finalized node. Produced by the checked wrappers
// (see CheckedWriter, CheckedDocument) and by base writers where detection
// costs nothing.
type MisuseError struct {
	Op  string
	Msg string
}

func misusef(op string, msg string, args ...any) *MisuseError {
	return &MisuseError{op, fmt.Sprintf(msg, args...)}
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("docstream: misuse: %s: %s", e.Op, e.Msg)
}

// IsMisuse reports whether err is (or wraps) a contract violation.
func IsMisuse(err error) bool {
	var m *MisuseError
	return errors.As(err, &m)
}
