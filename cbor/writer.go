package cbor

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/andreyvit/docstream"
)

// Writer is a root CBOR writer bound to a byte sink. Exactly one top-level
// document may be emitted; Close must be called after the document is
// complete (it flushes the sink if the sink supports flushing).
//
// The base writer enforces declared string sizes (exceeding one would emit
// bytes outside the declared extent) and nothing else; wrap the root in
// docstream.CheckedWriter to catch every contract violation.
type Writer struct {
	valueWriter
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{valueWriter{&encoder{w: w}}, w}
}

func (w *Writer) Close() error {
	if w.e.err != nil {
		return w.e.err
	}
	return docstream.Flush(w.w)
}

type encoder struct {
	w       io.Writer
	err     error // sticky
	scratch [9]byte
}

func (e *encoder) fail(err error) error {
	if e.err == nil {
		e.err = err
	}
	return e.err
}

func (e *encoder) write(p []byte) error {
	if e.err != nil {
		return e.err
	}
	if _, err := e.w.Write(p); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *encoder) writeByte(b byte) error {
	e.scratch[0] = b
	return e.write(e.scratch[:1])
}

// writeHeader emits the shortest-form header for the given argument.
func (e *encoder) writeHeader(major byte, n uint64) error {
	switch {
	case n < 24:
		e.scratch[0] = major<<5 | byte(n)
		return e.write(e.scratch[:1])
	case n <= math.MaxUint8:
		e.scratch[0] = major<<5 | 24
		e.scratch[1] = byte(n)
		return e.write(e.scratch[:2])
	case n <= math.MaxUint16:
		e.scratch[0] = major<<5 | 25
		binary.BigEndian.PutUint16(e.scratch[1:3], uint16(n))
		return e.write(e.scratch[:3])
	case n <= math.MaxUint32:
		e.scratch[0] = major<<5 | 26
		binary.BigEndian.PutUint32(e.scratch[1:5], uint32(n))
		return e.write(e.scratch[:5])
	default:
		e.scratch[0] = major<<5 | 27
		binary.BigEndian.PutUint64(e.scratch[1:9], n)
		return e.write(e.scratch[:9])
	}
}

type valueWriter struct {
	e *encoder
}

var _ docstream.ValueWriter = valueWriter{}

func (v valueWriter) WriteUint(x uint64) error {
	return v.e.writeHeader(majorUint, x)
}

func (v valueWriter) WriteInt(x int64) error {
	if x >= 0 {
		return v.e.writeHeader(majorUint, uint64(x))
	}
	return v.e.writeHeader(majorNegInt, uint64(-(x + 1)))
}

func (v valueWriter) WriteFloat(x float64) error {
	v.e.scratch[0] = majorOther<<5 | 27
	binary.BigEndian.PutUint64(v.e.scratch[1:9], math.Float64bits(x))
	return v.e.write(v.e.scratch[:9])
}

func (v valueWriter) WriteBool(x bool) error {
	if x {
		return v.e.writeByte(majorOther<<5 | simpleTrue)
	}
	return v.e.writeByte(majorOther<<5 | simpleFalse)
}

func (v valueWriter) WriteNull() error {
	return v.e.writeByte(majorOther<<5 | simpleNull)
}

func (v valueWriter) WriteUndefined() error {
	return v.e.writeByte(majorOther<<5 | simpleUndefined)
}

func (v valueWriter) WriteByteString() (docstream.StreamWriter, error) {
	return v.openString(majorBytes)
}

func (v valueWriter) WriteByteStringLen(n uint64) (docstream.StreamWriter, error) {
	return v.openStringLen(majorBytes, n)
}

func (v valueWriter) WriteTextString() (docstream.StreamWriter, error) {
	return v.openString(majorText)
}

func (v valueWriter) WriteTextStringLen(n uint64) (docstream.StreamWriter, error) {
	return v.openStringLen(majorText, n)
}

func (v valueWriter) openString(major byte) (docstream.StreamWriter, error) {
	if err := v.e.writeByte(major<<5 | infoIndefinite); err != nil {
		return nil, err
	}
	return &stringWriter{e: v.e, major: major, indefinite: true}, nil
}

func (v valueWriter) openStringLen(major byte, n uint64) (docstream.StreamWriter, error) {
	if err := v.e.writeHeader(major, n); err != nil {
		return nil, err
	}
	return &stringWriter{e: v.e, major: major, remaining: n}, nil
}

func (v valueWriter) WriteArray() (docstream.ArrayWriter, error) {
	if err := v.e.writeByte(majorArray<<5 | infoIndefinite); err != nil {
		return nil, err
	}
	return &arrayWriter{e: v.e, indefinite: true}, nil
}

func (v valueWriter) WriteArrayLen(n uint64) (docstream.ArrayWriter, error) {
	if err := v.e.writeHeader(majorArray, n); err != nil {
		return nil, err
	}
	return &arrayWriter{e: v.e}, nil
}

func (v valueWriter) WriteMap() (docstream.MapWriter, error) {
	if err := v.e.writeByte(majorMap<<5 | infoIndefinite); err != nil {
		return nil, err
	}
	return &mapWriter{e: v.e, indefinite: true}, nil
}

func (v valueWriter) WriteMapLen(n uint64) (docstream.MapWriter, error) {
	if err := v.e.writeHeader(majorMap, n); err != nil {
		return nil, err
	}
	return &mapWriter{e: v.e}, nil
}

// stringWriter streams string payload bytes. In indefinite mode each Write
// becomes one definite-length chunk and Close emits the break byte; in
// definite mode the bytes follow the already-written header and the declared
// count is enforced.
type stringWriter struct {
	e          *encoder
	major      byte
	remaining  uint64
	indefinite bool
	closed     bool
}

func (s *stringWriter) Write(p []byte) (int, error) {
	if s.e.err != nil {
		return 0, s.e.err
	}
	if s.closed {
		return 0, &docstream.MisuseError{Op: "Write", Msg: "string stream already closed"}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.indefinite {
		if err := s.e.writeHeader(s.major, uint64(len(p))); err != nil {
			return 0, err
		}
	} else {
		if uint64(len(p)) > s.remaining {
			return 0, &docstream.MisuseError{Op: "Write", Msg: "more bytes than the declared string length"}
		}
		s.remaining -= uint64(len(p))
	}
	if err := s.e.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *stringWriter) Close() error {
	if s.e.err != nil {
		return s.e.err
	}
	if s.closed {
		return &docstream.MisuseError{Op: "Close", Msg: "string stream already closed"}
	}
	if !s.indefinite && s.remaining > 0 {
		return &docstream.MisuseError{Op: "Close", Msg: "fewer bytes than the declared string length"}
	}
	s.closed = true
	if s.indefinite {
		return s.e.writeByte(breakByte)
	}
	return nil
}

type arrayWriter struct {
	e          *encoder
	indefinite bool
}

func (a *arrayWriter) Append() (docstream.ValueWriter, error) {
	if a.e.err != nil {
		return nil, a.e.err
	}
	return valueWriter{a.e}, nil
}

func (a *arrayWriter) Close() error {
	if a.e.err != nil {
		return a.e.err
	}
	if a.indefinite {
		return a.e.writeByte(breakByte)
	}
	return nil
}

type mapWriter struct {
	e          *encoder
	indefinite bool
}

func (m *mapWriter) AppendKey() (docstream.ValueWriter, error) {
	if m.e.err != nil {
		return nil, m.e.err
	}
	return valueWriter{m.e}, nil
}

func (m *mapWriter) AppendValue() (docstream.ValueWriter, error) {
	if m.e.err != nil {
		return nil, m.e.err
	}
	return valueWriter{m.e}, nil
}

func (m *mapWriter) Close() error {
	if m.e.err != nil {
		return m.e.err
	}
	if m.indefinite {
		return m.e.writeByte(breakByte)
	}
	return nil
}
