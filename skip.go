package docstream

import "io"

// Skip drains a document to completion without exposing its payload: strings
// are read and discarded, containers are traversed element by element.
// Scalars are a no-op. Skip never reports a misuse; it surfaces only codec
// parse errors and I/O errors.
//
// Array and map readers use Skip internally when the caller abandons a
// partially-read child, so skipping an already-consumed document is cheap
// and safe.
func Skip(d Document) error {
	switch d.tag {
	case TagByteString, TagTextString:
		_, err := io.Copy(io.Discard, d.str)
		return err
	case TagArray:
		for {
			elem, ok, err := d.arr.Read()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := Skip(elem); err != nil {
				return err
			}
		}
	case TagMap:
		for {
			key, ok, err := d.m.ReadKey()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := Skip(key); err != nil {
				return err
			}
			value, err := d.m.ReadValue()
			if err != nil {
				return err
			}
			if err := Skip(value); err != nil {
				return err
			}
		}
	default:
		return nil
	}
}
