package docstream

import "io"

// ValueWriter is a position that accepts exactly one document: the root of a
// writer tree, an array element, or a map key or value. Exactly one Write*
// method may be called on it; the container-returning methods hand the
// position over to the returned child writer, and the parent must not be
// advanced until that child is closed.
type ValueWriter interface {
	WriteUint(v uint64) error
	WriteInt(v int64) error
	WriteFloat(v float64) error
	WriteBool(v bool) error
	WriteNull() error
	WriteUndefined() error

	// WriteByteString and WriteTextString open a string of undeclared
	// length; the *Len variants declare an exact byte count, and pushing
	// fewer or more bytes before Close is a misuse.
	WriteByteString() (StreamWriter, error)
	WriteByteStringLen(n uint64) (StreamWriter, error)
	WriteTextString() (StreamWriter, error)
	WriteTextStringLen(n uint64) (StreamWriter, error)

	WriteArray() (ArrayWriter, error)
	WriteArrayLen(n uint64) (ArrayWriter, error)
	WriteMap() (MapWriter, error)
	WriteMapLen(n uint64) (MapWriter, error)
}

// StreamWriter receives the payload of a byte or text string. Close ends the
// string and returns control to the parent.
type StreamWriter interface {
	io.Writer
	Close() error
}

// ArrayWriter emits array elements one at a time. Append may be called only
// when no previous child is outstanding; Close finalizes the array. For the
// size-declared form, Close before or after exactly n appends is a misuse.
type ArrayWriter interface {
	Append() (ValueWriter, error)
	Close() error
}

// MapWriter emits map entries in strict key-then-value alternation. Close is
// permitted only when a key is expected.
type MapWriter interface {
	AppendKey() (ValueWriter, error)
	AppendValue() (ValueWriter, error)
	Close() error
}
