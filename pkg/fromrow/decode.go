package fromrow

import (
	"reflect"
)

// decodeRow decodes a whole row into v. Columns left over after the container
// is complete make the row too long.
func decodeRow(n *node, row []any, v reflect.Value) error {
	used, err := decodeNode(n, row, 0, v)
	if err != nil {
		return err
	}
	if used < len(row) {
		return decodeErr(ErrRowTooLong, used, "",
			"%s uses %d of %d columns", n.c.Name, used, len(row))
	}
	return nil
}

// decodeNode decodes the container described by n from row[at:] into v and
// returns the number of columns it consumed.
func decodeNode(n *node, row []any, at int, v reflect.Value) (int, error) {
	pos := at
	for i := range n.fields {
		f := &n.fields[i]
		fv := v.Field(f.prop.Index)

		var (
			used int
			err  error
		)
		switch {
		case f.prop.HasStride():
			used, err = decodeStride(f, row, pos, fv)
		case f.prop.Merge:
			ev := reflect.New(f.elem).Elem()
			used, err = decodeValue(f, row, pos, ev)
			if err == nil {
				s := reflect.MakeSlice(f.prop.Type, 0, 1)
				// An all-NULL pointer element (LEFT JOIN miss) adds nothing.
				if !f.ptr || !ev.IsNil() {
					s = reflect.Append(s, ev)
				}
				fv.Set(s)
			}
		default:
			used, err = decodeValue(f, row, pos, fv)
		}
		if err != nil {
			return 0, err
		}
		pos += used
	}
	return pos - at, nil
}

// decodeValue decodes one value of the field's element type starting at
// row[at]: a single column for scalars, a nested range for containers.
func decodeValue(f *field, row []any, at int, dst reflect.Value) (int, error) {
	if f.nested == nil {
		if at >= len(row) {
			return 0, decodeErr(ErrRowTooShort, at, f.prop.Pos.String(),
				"row has %d columns", len(row))
		}
		if err := assign(dst, row[at]); err != nil {
			return 0, &DecodeError{Row: -1, Column: at, Field: f.prop.Pos.String(), Msg: err.Error(), Err: ErrTypeMismatch}
		}
		return 1, nil
	}

	target := dst
	if f.ptr {
		w := f.nested.width
		if w != unbounded && allNull(row, at, w) {
			dst.SetZero()
			return w, nil
		}
		pv := reflect.New(f.nested.c.Type)
		dst.Set(pv)
		target = pv.Elem()
	}
	return decodeNode(f.nested, row, at, target)
}

// decodeStride carves row[at:] into elements of f.prop.Stride columns each.
func decodeStride(f *field, row []any, at int, dst reflect.Value) (int, error) {
	stride := f.prop.Stride
	remaining := len(row) - at
	if remaining < 0 {
		return 0, decodeErr(ErrRowTooShort, len(row), f.prop.Pos.String(),
			"row has %d columns", len(row))
	}
	if remaining%stride != 0 {
		return 0, decodeErr(ErrStrideMismatch, at, f.prop.Pos.String(),
			"%d remaining columns are not a multiple of stride %d", remaining, stride)
	}

	k := remaining / stride
	s := reflect.MakeSlice(f.prop.Type, k, k)
	for j := 0; j < k; j++ {
		start := at + j*stride
		// Bound the element to its own stride.
		if _, err := decodeValue(f, row[:start+stride], start, s.Index(j)); err != nil {
			return 0, err
		}
	}
	dst.Set(s)
	return remaining, nil
}

func allNull(row []any, at, width int) bool {
	if at+width > len(row) {
		return false
	}
	for _, v := range row[at : at+width] {
		if v != nil {
			return false
		}
	}
	return true
}
