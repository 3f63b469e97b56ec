package docstream

import (
	"io"
	"strings"
)

// Flusher is the optional commit operation of a byte-stream sink. Root
// writers call Flush through the helper below after the document is complete.
type Flusher interface {
	Flush() error
}

// Flush commits w if it supports flushing; otherwise it is a no-op.
func Flush(w io.Writer) error {
	if f, ok := w.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// ReadFull fills buf from r, converting a short read into ErrUnexpectedEnd.
func ReadFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrUnexpectedEnd
	}
	return err
}

// SkipBytes discards exactly n bytes from r, returning ErrUnexpectedEnd if
// the stream ends first.
func SkipBytes(r io.Reader, n int64) error {
	m, err := io.CopyN(io.Discard, r, n)
	if err == io.EOF && m < n {
		return ErrUnexpectedEnd
	}
	return err
}

// ReadAllString drains r into a string.
func ReadAllString(r io.Reader) (string, error) {
	var sb strings.Builder
	_, err := io.Copy(&sb, r)
	return sb.String(), err
}

// CopyStream pipes src to dst until end of stream.
func CopyStream(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}
