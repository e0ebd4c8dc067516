package fromrow

import (
	"fmt"
	"reflect"
)

// Flatten encodes v (a struct or pointer to struct) back into rows, columns in
// declaration order. A container that does not merge yields one row; a merging
// container yields one row per merged element, and all of its merge fields
// must hold the same number of elements.
//
// The round trip through Decode is exact except where NULL columns carry no
// distinction: a non-nil pointer split field whose columns are all NULL
// decodes back as nil, and a merging value with empty merge fields flattens
// to no rows.
func Flatten(v any) ([][]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("fromrow: Flatten of nil %T", v)
		}
		rv = rv.Elem()
	}
	p, err := PlanOf(rv.Type())
	if err != nil {
		return nil, err
	}
	return p.Flatten(rv)
}

// Flatten is the inverse of DecodeRow / Collect for a single value.
func (p *Plan) Flatten(v reflect.Value) ([][]any, error) {
	n := p.root
	if v.Type() != n.c.Type {
		return nil, fmt.Errorf("fromrow: Flatten of %v with plan for %v", v.Type(), n.c.Type)
	}
	if len(n.merges) == 0 {
		row, err := flattenNode(n, v, nil, -1)
		if err != nil {
			return nil, err
		}
		return [][]any{row}, nil
	}

	count := -1
	for _, fi := range n.merges {
		f := &n.fields[fi]
		l := v.Field(f.prop.Index).Len()
		if count >= 0 && l != count {
			return nil, fmt.Errorf("fromrow: merge field %s has %d elements, want %d", f.prop.Pos, l, count)
		}
		count = l
	}
	rows := make([][]any, 0, count)
	for j := 0; j < count; j++ {
		row, err := flattenNode(n, v, nil, j)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// flattenNode appends the columns of v to out. elem selects which merge
// element to emit; it is ignored by containers without merge fields.
func flattenNode(n *node, v reflect.Value, out []any, elem int) ([]any, error) {
	var err error
	for i := range n.fields {
		f := &n.fields[i]
		fv := v.Field(f.prop.Index)
		switch {
		case f.prop.HasStride():
			for j := 0; j < fv.Len(); j++ {
				if out, err = flattenValue(f, fv.Index(j), out); err != nil {
					return nil, err
				}
			}
		case f.prop.Merge:
			out, err = flattenValue(f, fv.Index(elem), out)
		default:
			out, err = flattenValue(f, fv, out)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenValue(f *field, v reflect.Value, out []any) ([]any, error) {
	if f.nested == nil {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return append(out, nil), nil
			}
			v = v.Elem()
		}
		return append(out, v.Interface()), nil
	}
	if f.ptr {
		if v.IsNil() {
			if f.nested.width == unbounded {
				return out, nil
			}
			for i := 0; i < f.nested.width; i++ {
				out = append(out, nil)
			}
			return out, nil
		}
		v = v.Elem()
	}
	return flattenNode(f.nested, v, out, -1)
}
