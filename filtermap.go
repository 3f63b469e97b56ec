package docstream

// FilteredMap adapts a map reader for lookup by key index. It is constructed
// with a sorted list of uint64 key names; the caller requests values by the
// index of a key within that list, in non-decreasing index order. Lookup cost
// is O(bytes scanned) amortized across the whole access pattern: each byte of
// the underlying map is read at most once.
//
// The adapter never rewinds. Requesting an index lower than a previously
// matched one reports the key as absent.
type FilteredMap struct {
	m       MapReader
	keys    []uint64
	idx     int
	onValue bool
}

// FilterMap wraps m for index-based lookup. keys must be sorted ascending.
func FilterMap(m MapReader, keys []uint64) *FilteredMap {
	return &FilteredMap{m: m, keys: keys}
}

// ReadValueAt returns the value of keys[i], or ok == false if that key is
// absent from the map or has already been scanned past.
func (f *FilteredMap) ReadValueAt(i int) (Document, bool, error) {
	if i < 0 || i >= len(f.keys) {
		panic("docstream: FilteredMap.ReadValueAt: index out of range")
	}
	if f.idx > i {
		return Document{}, false, nil
	}

	if f.onValue {
		f.onValue = false
		v, err := f.m.ReadValue()
		if err != nil {
			return Document{}, false, err
		}
		if f.idx == i {
			return v, true, nil
		}
		if err := Skip(v); err != nil {
			return Document{}, false, err
		}
	}

	for {
		key, ok, err := f.m.ReadKey()
		if err != nil {
			return Document{}, false, err
		}
		if !ok {
			return Document{}, false, nil
		}
		if !key.Is(TagUnsignedInt) {
			if err := Skip(key); err != nil {
				return Document{}, false, err
			}
			if err := f.skipValue(); err != nil {
				return Document{}, false, err
			}
			continue
		}

		j := find(f.keys[f.idx:], key.Uint())
		if j < 0 {
			// A key we were not asked about.
			if err := f.skipValue(); err != nil {
				return Document{}, false, err
			}
			continue
		}
		f.idx += j
		switch {
		case f.idx == i:
			v, err := f.m.ReadValue()
			if err != nil {
				return Document{}, false, err
			}
			return v, true, nil
		case f.idx > i:
			// Found a key later in the list; keys[i] is absent. Hold the
			// value for the next lookup.
			f.onValue = true
			return Document{}, false, nil
		default:
			// A key still before us; skip its value and keep scanning.
			if err := f.skipValue(); err != nil {
				return Document{}, false, err
			}
		}
	}
}

// Skip drains any pending value and the rest of the underlying map. Further
// lookups report every key as absent.
func (f *FilteredMap) Skip() error {
	if f.onValue {
		f.onValue = false
		if err := f.skipValue(); err != nil {
			return err
		}
	}
	if err := Skip(NewMap(f.m)); err != nil {
		return err
	}
	f.idx = len(f.keys)
	return nil
}

func (f *FilteredMap) skipValue() error {
	v, err := f.m.ReadValue()
	if err != nil {
		return err
	}
	return Skip(v)
}

func find(keys []uint64, v uint64) int {
	for j, k := range keys {
		if k == v {
			return j
		}
	}
	return -1
}
