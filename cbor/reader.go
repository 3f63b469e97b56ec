package cbor

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/andreyvit/docstream"
)

// Reader is a root CBOR reader bound to a byte stream. It produces exactly
// one document; the document's payload is pulled from the stream on demand.
type Reader struct {
	d    *decoder
	used bool
}

// NewReader binds a root reader to r. The stream is read byte-exactly: no
// lookahead is ever consumed past the document, so the reader can be handed
// a stream with trailing data. Wrap r in a bufio.Reader when the source
// makes small reads expensive.
func NewReader(r io.Reader) *Reader {
	return &Reader{d: &decoder{r: r}}
}

// Read parses the document header and returns the lazily-populated document.
// A clean end of stream before the first byte returns io.EOF.
func (r *Reader) Read() (docstream.Document, error) {
	if r.used {
		return docstream.Document{}, &docstream.MisuseError{Op: "Read", Msg: "root reader already produced its document"}
	}
	r.used = true
	ib, err := r.d.readInitialByte()
	if err != nil {
		return docstream.Document{}, err
	}
	return r.d.parseDocument(ib)
}

// Read parses a single document from r. Shorthand for NewReader(r).Read().
func Read(r io.Reader) (docstream.Document, error) {
	return NewReader(r).Read()
}

// decoder is the per-stream state shared by every node of one reader tree.
type decoder struct {
	r       io.Reader
	off     int64
	err     error // sticky; poisons the whole tree
	scratch [8]byte
}

func (d *decoder) fail(err error) error {
	if d.err == nil {
		d.err = err
	}
	return d.err
}

func (d *decoder) corrupt(cause error, msg string, args ...any) error {
	return d.fail(docstream.CodecErrf(formatName, d.off, cause, msg, args...))
}

// readInitialByte distinguishes a clean end of stream (io.EOF) from
// truncation inside a document.
func (d *decoder) readInitialByte() (byte, error) {
	if d.err != nil {
		return 0, d.err
	}
	_, err := io.ReadFull(d.r, d.scratch[:1])
	if err == io.EOF {
		return 0, d.fail(io.EOF)
	}
	if err != nil {
		return 0, d.fail(err)
	}
	d.off++
	return d.scratch[0], nil
}

func (d *decoder) readByte() (byte, error) {
	if d.err != nil {
		return 0, d.err
	}
	if err := docstream.ReadFull(d.r, d.scratch[:1]); err != nil {
		if err == docstream.ErrUnexpectedEnd {
			return 0, d.corrupt(err, "truncated item")
		}
		return 0, d.fail(err)
	}
	d.off++
	return d.scratch[0], nil
}

func (d *decoder) readFull(p []byte) error {
	if d.err != nil {
		return d.err
	}
	if err := docstream.ReadFull(d.r, p); err != nil {
		if err == docstream.ErrUnexpectedEnd {
			return d.corrupt(err, "truncated item")
		}
		return d.fail(err)
	}
	d.off += int64(len(p))
	return nil
}

// readArg decodes the additional-information argument of a header byte.
func (d *decoder) readArg(info byte) (v uint64, indefinite bool, err error) {
	switch {
	case info < 24:
		return uint64(info), false, nil
	case info == 24:
		b, err := d.readByte()
		return uint64(b), false, err
	case info == 25:
		if err := d.readFull(d.scratch[:2]); err != nil {
			return 0, false, err
		}
		return uint64(binary.BigEndian.Uint16(d.scratch[:2])), false, nil
	case info == 26:
		if err := d.readFull(d.scratch[:4]); err != nil {
			return 0, false, err
		}
		return uint64(binary.BigEndian.Uint32(d.scratch[:4])), false, nil
	case info == 27:
		if err := d.readFull(d.scratch[:8]); err != nil {
			return 0, false, err
		}
		return binary.BigEndian.Uint64(d.scratch[:8]), false, nil
	case info == infoIndefinite:
		return 0, true, nil
	default:
		return 0, false, d.corrupt(nil, "reserved additional information %d", info)
	}
}

func (d *decoder) parseDocument(ib byte) (docstream.Document, error) {
	for {
		if d.err != nil {
			return docstream.Document{}, d.err
		}
		major := ib >> 5
		info := ib & 0x1f
		switch major {
		case majorUint:
			n, indef, err := d.readArg(info)
			if err != nil {
				return docstream.Document{}, err
			}
			if indef {
				return docstream.Document{}, d.corrupt(nil, "indefinite length on integer")
			}
			return docstream.NewUint(n), nil

		case majorNegInt:
			n, indef, err := d.readArg(info)
			if err != nil {
				return docstream.Document{}, err
			}
			if indef {
				return docstream.Document{}, d.corrupt(nil, "indefinite length on integer")
			}
			if n > math.MaxInt64 {
				return docstream.Document{}, d.corrupt(nil, "negative integer -%d overflows int64", n)
			}
			return docstream.NewInt(-1 - int64(n)), nil

		case majorBytes, majorText:
			n, indef, err := d.readArg(info)
			if err != nil {
				return docstream.Document{}, err
			}
			sr := &stringReader{d: d, major: major, remaining: n, indefinite: indef}
			if major == majorBytes {
				return docstream.NewByteString(sr), nil
			}
			return docstream.NewTextString(sr), nil

		case majorArray:
			n, indef, err := d.readArg(info)
			if err != nil {
				return docstream.Document{}, err
			}
			return docstream.NewArray(&arrayReader{d: d, remaining: n, indefinite: indef}), nil

		case majorMap:
			n, indef, err := d.readArg(info)
			if err != nil {
				return docstream.Document{}, err
			}
			return docstream.NewMap(&mapReader{d: d, remaining: n, indefinite: indef}), nil

		case majorTag:
			// Semantic tags carry no structure of their own; drop them.
			_, indef, err := d.readArg(info)
			if err != nil {
				return docstream.Document{}, err
			}
			if indef {
				return docstream.Document{}, d.corrupt(nil, "indefinite length on tag")
			}
			ib2, err := d.readByte()
			if err != nil {
				return docstream.Document{}, err
			}
			ib = ib2
			continue

		default: // majorOther
			return d.parseSimple(info)
		}
	}
}

func (d *decoder) parseSimple(info byte) (docstream.Document, error) {
	switch info {
	case simpleFalse:
		return docstream.NewBool(false), nil
	case simpleTrue:
		return docstream.NewBool(true), nil
	case simpleNull:
		return docstream.NewNull(), nil
	case simpleUndefined:
		return docstream.NewUndefined(), nil
	case 24:
		b, err := d.readByte()
		if err != nil {
			return docstream.Document{}, err
		}
		if b < 32 {
			return docstream.Document{}, d.corrupt(nil, "invalid two-byte encoding of simple value %d", b)
		}
		return docstream.Document{}, d.corrupt(nil, "unassigned simple value %d", b)
	case 25:
		if err := d.readFull(d.scratch[:2]); err != nil {
			return docstream.Document{}, err
		}
		return docstream.NewFloat(halfToFloat(binary.BigEndian.Uint16(d.scratch[:2]))), nil
	case 26:
		if err := d.readFull(d.scratch[:4]); err != nil {
			return docstream.Document{}, err
		}
		return docstream.NewFloat(float64(math.Float32frombits(binary.BigEndian.Uint32(d.scratch[:4])))), nil
	case 27:
		if err := d.readFull(d.scratch[:8]); err != nil {
			return docstream.Document{}, err
		}
		return docstream.NewFloat(math.Float64frombits(binary.BigEndian.Uint64(d.scratch[:8]))), nil
	case infoIndefinite:
		return docstream.Document{}, d.corrupt(nil, "break outside indefinite-length item")
	default:
		if info < 24 {
			return docstream.Document{}, d.corrupt(nil, "unassigned simple value %d", info)
		}
		return docstream.Document{}, d.corrupt(nil, "reserved additional information %d", info)
	}
}

// stringReader streams the payload of a byte or text string, definite or
// indefinite (chunked).
type stringReader struct {
	d          *decoder
	major      byte
	remaining  uint64 // bytes left in the current chunk
	indefinite bool
	done       bool
}

func (s *stringReader) Read(p []byte) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if s.d.err != nil {
		return 0, s.d.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	for s.remaining == 0 {
		if !s.indefinite {
			s.done = true
			return 0, io.EOF
		}
		ib, err := s.d.readByte()
		if err != nil {
			return 0, err
		}
		if ib == breakByte {
			s.done = true
			return 0, io.EOF
		}
		if ib>>5 != s.major {
			return 0, s.d.corrupt(nil, "chunk of wrong major type inside indefinite-length string")
		}
		n, indef, err := s.d.readArg(ib & 0x1f)
		if err != nil {
			return 0, err
		}
		if indef {
			return 0, s.d.corrupt(nil, "nested indefinite-length string chunk")
		}
		s.remaining = n
	}
	n := uint64(len(p))
	if n > s.remaining {
		n = s.remaining
	}
	if err := s.d.readFull(p[:n]); err != nil {
		return 0, err
	}
	s.remaining -= n
	return int(n), nil
}

type arrayReader struct {
	d          *decoder
	remaining  uint64
	indefinite bool
	done       bool
	last       docstream.Document
	haveLast   bool
}

func (a *arrayReader) Read() (docstream.Document, bool, error) {
	if a.d.err != nil {
		return docstream.Document{}, false, a.d.err
	}
	if a.done {
		return docstream.Document{}, false, nil
	}
	if a.haveLast {
		a.haveLast = false
		if err := docstream.Skip(a.last); err != nil {
			return docstream.Document{}, false, err
		}
	}
	if !a.indefinite {
		if a.remaining == 0 {
			a.done = true
			return docstream.Document{}, false, nil
		}
		a.remaining--
	}
	ib, err := a.d.readByte()
	if err != nil {
		return docstream.Document{}, false, err
	}
	if a.indefinite && ib == breakByte {
		a.done = true
		return docstream.Document{}, false, nil
	}
	doc, err := a.d.parseDocument(ib)
	if err != nil {
		return docstream.Document{}, false, err
	}
	a.last = doc
	a.haveLast = true
	return doc, true, nil
}

type mapReader struct {
	d            *decoder
	remaining    uint64 // pairs
	indefinite   bool
	done         bool
	valuePending bool
	last         docstream.Document
	haveLast     bool
}

func (m *mapReader) ReadKey() (docstream.Document, bool, error) {
	if m.d.err != nil {
		return docstream.Document{}, false, m.d.err
	}
	if m.done {
		return docstream.Document{}, false, nil
	}
	if m.valuePending {
		v, err := m.ReadValue()
		if err != nil {
			return docstream.Document{}, false, err
		}
		if err := docstream.Skip(v); err != nil {
			return docstream.Document{}, false, err
		}
	}
	if m.haveLast {
		m.haveLast = false
		if err := docstream.Skip(m.last); err != nil {
			return docstream.Document{}, false, err
		}
	}
	if !m.indefinite {
		if m.remaining == 0 {
			m.done = true
			return docstream.Document{}, false, nil
		}
		m.remaining--
	}
	ib, err := m.d.readByte()
	if err != nil {
		return docstream.Document{}, false, err
	}
	if m.indefinite && ib == breakByte {
		m.done = true
		return docstream.Document{}, false, nil
	}
	key, err := m.d.parseDocument(ib)
	if err != nil {
		return docstream.Document{}, false, err
	}
	m.last = key
	m.haveLast = true
	m.valuePending = true
	return key, true, nil
}

func (m *mapReader) ReadValue() (docstream.Document, error) {
	if m.d.err != nil {
		return docstream.Document{}, m.d.err
	}
	if !m.valuePending {
		panic("cbor: ReadValue without a preceding ReadKey")
	}
	m.valuePending = false
	if m.haveLast {
		m.haveLast = false
		if err := docstream.Skip(m.last); err != nil {
			return docstream.Document{}, err
		}
	}
	ib, err := m.d.readByte()
	if err != nil {
		return docstream.Document{}, err
	}
	value, err := m.d.parseDocument(ib)
	if err != nil {
		return docstream.Document{}, err
	}
	m.last = value
	m.haveLast = true
	return value, nil
}
