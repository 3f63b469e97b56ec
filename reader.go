package docstream

import "io"

// ArrayReader is a lazy single-pass reader over the elements of an array
// document.
//
// Read returns the next element, or ok == false once the array is exhausted.
// If the previously returned element was a container or a string and was left
// partially consumed, Read silently skips its remainder before parsing the
// next element.
type ArrayReader interface {
	Read() (d Document, ok bool, err error)
}

// MapReader is a lazy single-pass reader over the entries of a map document.
//
// ReadKey returns the next key, or ok == false once the map is exhausted.
// ReadValue may be called exactly once after each successful ReadKey; calling
// ReadKey again with the value still pending silently skips that value. Keys
// may be documents of any kind.
type MapReader interface {
	ReadKey() (d Document, ok bool, err error)
	ReadValue() (Document, error)
}

// Visitor receives the inhabited alternative of a Document. See
// Document.Visit.
type Visitor interface {
	Undefined() error
	Null() error
	Bool(v bool) error
	Uint(v uint64) error
	Int(v int64) error
	Float(v float64) error
	ByteString(r io.Reader) error
	TextString(r io.Reader) error
	Array(r ArrayReader) error
	Map(r MapReader) error
}
