package docstream

import (
	"io"
	"log/slog"
)

// CheckOption configures the checked wrappers.
type CheckOption func(*checkConfig)

type checkConfig struct {
	logger *slog.Logger
}

// WithMisuseLogger makes the checked wrappers log every contract violation
// before returning it.
func WithMisuseLogger(l *slog.Logger) CheckOption {
	return func(cfg *checkConfig) { cfg.logger = l }
}

func (cfg *checkConfig) misuse(op string, msg string) error {
	err := misusef(op, "%s", msg)
	if cfg.logger != nil {
		cfg.logger.Warn("docstream: misuse", slog.String("op", op), slog.String("detail", msg))
	}
	return err
}

// childSite is a write position that is waiting for exactly one child to
// finish: a container wrapper, or the root.
type childSite interface {
	childDone()
}

// CheckedWriter wraps a writer tree and upgrades every contract violation to
// a *MisuseError: a second top-level document, touching a parent while a
// child is open, touching a closed node, over- or underfilling a
// size-declared string, array or map, and broken map key/value alternation.
//
// Close finalizes the root: it is a misuse to call it with a child still
// open, with no document written, or twice. If the wrapped writer implements
// io.Closer, Close closes it (committing buffered bytes to the sink).
func CheckedWriter(w ValueWriter, opts ...CheckOption) *CheckedRootWriter {
	cfg := &checkConfig{}
	for _, o := range opts {
		o(cfg)
	}
	root := &CheckedRootWriter{w: w}
	root.val = checkedValue{cfg: cfg, w: w, site: root}
	return root
}

// CheckedRootWriter is a checked root write position. See CheckedWriter.
type CheckedRootWriter struct {
	val       checkedValue
	w         ValueWriter
	childOpen bool
	written   bool
	closed    bool
}

func (r *CheckedRootWriter) childDone() {
	r.childOpen = false
	r.written = true
}

func (r *CheckedRootWriter) WriteUint(v uint64) error { return r.val.WriteUint(v) }
func (r *CheckedRootWriter) WriteInt(v int64) error { return r.val.WriteInt(v) }
func (r *CheckedRootWriter) WriteFloat(v float64) error { return r.val.WriteFloat(v) }
func (r *CheckedRootWriter) WriteBool(v bool) error { return r.val.WriteBool(v) }
func (r *CheckedRootWriter) WriteNull() error { return r.val.WriteNull() }
func (r *CheckedRootWriter) WriteUndefined() error { return r.val.WriteUndefined() }

func (r *CheckedRootWriter) WriteByteString() (StreamWriter, error) { return r.val.WriteByteString() }
func (r *CheckedRootWriter) WriteByteStringLen(n uint64) (StreamWriter, error) {
	return r.val.WriteByteStringLen(n)
}
func (r *CheckedRootWriter) WriteTextString() (StreamWriter, error) { return r.val.WriteTextString() }
func (r *CheckedRootWriter) WriteTextStringLen(n uint64) (StreamWriter, error) {
	return r.val.WriteTextStringLen(n)
}
func (r *CheckedRootWriter) WriteArray() (ArrayWriter, error) { return r.val.WriteArray() }
func (r *CheckedRootWriter) WriteArrayLen(n uint64) (ArrayWriter, error) { return r.val.WriteArrayLen(n) }
func (r *CheckedRootWriter) WriteMap() (MapWriter, error) { return r.val.WriteMap() }
func (r *CheckedRootWriter) WriteMapLen(n uint64) (MapWriter, error) { return r.val.WriteMapLen(n) }

func (r *CheckedRootWriter) Close() error {
	cfg := r.val.cfg
	if r.closed {
		return cfg.misuse("Close", "root writer already closed")
	}
	if r.childOpen {
		return cfg.misuse("Close", "document still open on root writer")
	}
	if !r.written {
		return cfg.misuse("Close", "no document written to root writer")
	}
	r.closed = true
	if c, ok := r.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// checkedValue guards one write position: exactly one Write* call.
type checkedValue struct {
	cfg  *checkConfig
	w    ValueWriter
	site childSite
	used bool
}

func (v *checkedValue) begin(op string) error {
	if v.used {
		return v.cfg.misuse(op, "document already written at this position")
	}
	if r, ok := v.site.(*CheckedRootWriter); ok {
		if r.closed {
			return v.cfg.misuse(op, "root writer already closed")
		}
		if r.written || r.childOpen {
			return v.cfg.misuse(op, "second top-level document on root writer")
		}
		r.childOpen = true
	}
	v.used = true
	return nil
}

func (v *checkedValue) scalar(op string, write func() error) error {
	if err := v.begin(op); err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	v.site.childDone()
	return nil
}

func (v *checkedValue) WriteUint(x uint64) error {
	return v.scalar("WriteUint", func() error { return v.w.WriteUint(x) })
}
func (v *checkedValue) WriteInt(x int64) error {
	return v.scalar("WriteInt", func() error { return v.w.WriteInt(x) })
}
func (v *checkedValue) WriteFloat(x float64) error {
	return v.scalar("WriteFloat", func() error { return v.w.WriteFloat(x) })
}
func (v *checkedValue) WriteBool(x bool) error {
	return v.scalar("WriteBool", func() error { return v.w.WriteBool(x) })
}
func (v *checkedValue) WriteNull() error {
	return v.scalar("WriteNull", v.w.WriteNull)
}
func (v *checkedValue) WriteUndefined() error {
	return v.scalar("WriteUndefined", v.w.WriteUndefined)
}

func (v *checkedValue) stream(op string, open func() (StreamWriter, error), declared bool, n uint64) (StreamWriter, error) {
	if err := v.begin(op); err != nil {
		return nil, err
	}
	sw, err := open()
	if err != nil {
		return nil, err
	}
	return &checkedStream{cfg: v.cfg, w: sw, site: v.site, declared: declared, remaining: n}, nil
}

func (v *checkedValue) WriteByteString() (StreamWriter, error) {
	return v.stream("WriteByteString", v.w.WriteByteString, false, 0)
}
func (v *checkedValue) WriteByteStringLen(n uint64) (StreamWriter, error) {
	return v.stream("WriteByteStringLen", func() (StreamWriter, error) { return v.w.WriteByteStringLen(n) }, true, n)
}
func (v *checkedValue) WriteTextString() (StreamWriter, error) {
	return v.stream("WriteTextString", v.w.WriteTextString, false, 0)
}
func (v *checkedValue) WriteTextStringLen(n uint64) (StreamWriter, error) {
	return v.stream("WriteTextStringLen", func() (StreamWriter, error) { return v.w.WriteTextStringLen(n) }, true, n)
}

func (v *checkedValue) WriteArray() (ArrayWriter, error) {
	if err := v.begin("WriteArray"); err != nil {
		return nil, err
	}
	aw, err := v.w.WriteArray()
	if err != nil {
		return nil, err
	}
	return &checkedArrayWriter{cfg: v.cfg, w: aw, site: v.site, remaining: -1}, nil
}

func (v *checkedValue) WriteArrayLen(n uint64) (ArrayWriter, error) {
	if err := v.begin("WriteArrayLen"); err != nil {
		return nil, err
	}
	aw, err := v.w.WriteArrayLen(n)
	if err != nil {
		return nil, err
	}
	return &checkedArrayWriter{cfg: v.cfg, w: aw, site: v.site, remaining: int64(n)}, nil
}

func (v *checkedValue) WriteMap() (MapWriter, error) {
	if err := v.begin("WriteMap"); err != nil {
		return nil, err
	}
	mw, err := v.w.WriteMap()
	if err != nil {
		return nil, err
	}
	return &checkedMapWriter{cfg: v.cfg, w: mw, site: v.site, remaining: -1}, nil
}

func (v *checkedValue) WriteMapLen(n uint64) (MapWriter, error) {
	if err := v.begin("WriteMapLen"); err != nil {
		return nil, err
	}
	mw, err := v.w.WriteMapLen(n)
	if err != nil {
		return nil, err
	}
	return &checkedMapWriter{cfg: v.cfg, w: mw, site: v.site, remaining: int64(n)}, nil
}

type checkedStream struct {
	cfg       *checkConfig
	w         StreamWriter
	site      childSite
	declared  bool
	remaining uint64
	closed    bool
}

func (s *checkedStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, s.cfg.misuse("Write", "string stream already closed")
	}
	if s.declared {
		if uint64(len(p)) > s.remaining {
			return 0, s.cfg.misuse("Write", "more bytes than the declared string length")
		}
		s.remaining -= uint64(len(p))
	}
	return s.w.Write(p)
}

func (s *checkedStream) Close() error {
	if s.closed {
		return s.cfg.misuse("Close", "string stream already closed")
	}
	if s.declared && s.remaining > 0 {
		return s.cfg.misuse("Close", "fewer bytes than the declared string length")
	}
	s.closed = true
	if err := s.w.Close(); err != nil {
		return err
	}
	s.site.childDone()
	return nil
}

type checkedArrayWriter struct {
	cfg       *checkConfig
	w         ArrayWriter
	site      childSite
	remaining int64 // -1 when no size was declared
	childOpen bool
	closed    bool
}

func (a *checkedArrayWriter) childDone() { a.childOpen = false }

func (a *checkedArrayWriter) Append() (ValueWriter, error) {
	if a.closed {
		return nil, a.cfg.misuse("Append", "array writer already closed")
	}
	if a.childOpen {
		return nil, a.cfg.misuse("Append", "previous array element still open")
	}
	if a.remaining == 0 {
		return nil, a.cfg.misuse("Append", "more elements than the declared array length")
	}
	if a.remaining > 0 {
		a.remaining--
	}
	vw, err := a.w.Append()
	if err != nil {
		return nil, err
	}
	a.childOpen = true
	return &checkedValue{cfg: a.cfg, w: vw, site: a}, nil
}

func (a *checkedArrayWriter) Close() error {
	if a.closed {
		return a.cfg.misuse("Close", "array writer already closed")
	}
	if a.childOpen {
		return a.cfg.misuse("Close", "array element still open")
	}
	if a.remaining > 0 {
		return a.cfg.misuse("Close", "fewer elements than the declared array length")
	}
	a.closed = true
	if err := a.w.Close(); err != nil {
		return err
	}
	a.site.childDone()
	return nil
}

type checkedMapWriter struct {
	cfg       *checkConfig
	w         MapWriter
	site      childSite
	remaining int64 // pairs; -1 when no size was declared
	childOpen bool
	valueNext bool
	closed    bool
}

func (m *checkedMapWriter) childDone() {
	m.childOpen = false
	m.valueNext = !m.valueNext
}

func (m *checkedMapWriter) AppendKey() (ValueWriter, error) {
	if m.closed {
		return nil, m.cfg.misuse("AppendKey", "map writer already closed")
	}
	if m.childOpen {
		return nil, m.cfg.misuse("AppendKey", "previous map entry still open")
	}
	if m.valueNext {
		return nil, m.cfg.misuse("AppendKey", "value expected")
	}
	if m.remaining == 0 {
		return nil, m.cfg.misuse("AppendKey", "more entries than the declared map length")
	}
	if m.remaining > 0 {
		m.remaining--
	}
	vw, err := m.w.AppendKey()
	if err != nil {
		return nil, err
	}
	m.childOpen = true
	return &checkedValue{cfg: m.cfg, w: vw, site: m}, nil
}

func (m *checkedMapWriter) AppendValue() (ValueWriter, error) {
	if m.closed {
		return nil, m.cfg.misuse("AppendValue", "map writer already closed")
	}
	if m.childOpen {
		return nil, m.cfg.misuse("AppendValue", "previous map entry still open")
	}
	if !m.valueNext {
		return nil, m.cfg.misuse("AppendValue", "key expected")
	}
	vw, err := m.w.AppendValue()
	if err != nil {
		return nil, err
	}
	m.childOpen = true
	return &checkedValue{cfg: m.cfg, w: vw, site: m}, nil
}

func (m *checkedMapWriter) Close() error {
	if m.closed {
		return m.cfg.misuse("Close", "map writer already closed")
	}
	if m.childOpen {
		return m.cfg.misuse("Close", "map entry still open")
	}
	if m.valueNext {
		return m.cfg.misuse("Close", "value expected")
	}
	if m.remaining > 0 {
		return m.cfg.misuse("Close", "fewer entries than the declared map length")
	}
	m.closed = true
	if err := m.w.Close(); err != nil {
		return err
	}
	m.site.childDone()
	return nil
}

// CheckedDocument wraps a reader tree so that reads past exhaustion and
// broken map key/value alternation come back as *MisuseError instead of
// whatever the base reader does. Children are wrapped recursively.
func CheckedDocument(d Document, opts ...CheckOption) Document {
	cfg := &checkConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return checkDoc(d, cfg)
}

func checkDoc(d Document, cfg *checkConfig) Document {
	switch d.Tag() {
	case TagArray:
		return NewArray(&checkedArrayReader{cfg: cfg, r: d.Array()})
	case TagMap:
		return NewMap(&checkedMapReader{cfg: cfg, r: d.Map()})
	default:
		return d
	}
}

type checkedArrayReader struct {
	cfg       *checkConfig
	r         ArrayReader
	exhausted bool
}

func (a *checkedArrayReader) Read() (Document, bool, error) {
	if a.exhausted {
		return Document{}, false, a.cfg.misuse("Read", "array already exhausted")
	}
	d, ok, err := a.r.Read()
	if err != nil || !ok {
		a.exhausted = err == nil
		return Document{}, false, err
	}
	return checkDoc(d, a.cfg), true, nil
}

type checkedMapReader struct {
	cfg       *checkConfig
	r         MapReader
	valueNext bool
	exhausted bool
}

func (m *checkedMapReader) ReadKey() (Document, bool, error) {
	if m.exhausted {
		return Document{}, false, m.cfg.misuse("ReadKey", "map already exhausted")
	}
	m.valueNext = false
	d, ok, err := m.r.ReadKey()
	if err != nil || !ok {
		m.exhausted = err == nil
		return Document{}, false, err
	}
	m.valueNext = true
	return checkDoc(d, m.cfg), true, nil
}

func (m *checkedMapReader) ReadValue() (Document, error) {
	if m.exhausted {
		return Document{}, m.cfg.misuse("ReadValue", "map already exhausted")
	}
	if !m.valueNext {
		return Document{}, m.cfg.misuse("ReadValue", "no key was read")
	}
	m.valueNext = false
	d, err := m.r.ReadValue()
	if err != nil {
		return Document{}, err
	}
	return checkDoc(d, m.cfg), nil
}
