package fromrow

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/zeebo/xxh3"
)

// groupKey is the tuple of key-field values of one decoded row.
type groupKey struct {
	vals []reflect.Value
	sum  uint64
}

func keyOf(n *node, v reflect.Value) groupKey {
	vals := make([]reflect.Value, len(n.keys))
	for i, fi := range n.keys {
		vals[i] = v.Field(n.fields[fi].prop.Index)
	}
	return groupKey{vals: vals, sum: hashValues(vals)}
}

// keyFromArgs converts caller-supplied values to the key field types so they
// hash and compare like decoded keys.
func keyFromArgs(n *node, args []any) (groupKey, error) {
	if len(args) != len(n.keys) {
		return groupKey{}, fmt.Errorf("fromrow: key has %d fields, got %d values", len(n.keys), len(args))
	}
	vals := make([]reflect.Value, len(args))
	for i, fi := range n.keys {
		p := n.fields[fi].prop
		v := reflect.New(p.Type).Elem()
		if err := assign(v, args[i]); err != nil {
			return groupKey{}, fmt.Errorf("fromrow: key %s: %w", p.Name, err)
		}
		vals[i] = v
	}
	return groupKey{vals: vals, sum: hashValues(vals)}, nil
}

func (k groupKey) equal(o groupKey) bool {
	if k.sum != o.sum || len(k.vals) != len(o.vals) {
		return false
	}
	for i := range k.vals {
		if !valuesEqual(k.vals[i], o.vals[i]) {
			return false
		}
	}
	return true
}

func (k groupKey) values() []any {
	out := make([]any, len(k.vals))
	for i, v := range k.vals {
		out[i] = v.Interface()
	}
	return out
}

func valuesEqual(a, b reflect.Value) bool {
	if a.Type() == timeType && b.Type() == timeType {
		return a.Interface().(time.Time).Equal(b.Interface().(time.Time))
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

func hashValues(vals []reflect.Value) uint64 {
	h := xxh3.New()
	for _, v := range vals {
		writeValue(h, v)
	}
	return h.Sum64()
}

func writeValue(h *xxh3.Hasher, v reflect.Value) {
	var buf [9]byte
	put := func(tag byte, x uint64) {
		buf[0] = tag
		binary.LittleEndian.PutUint64(buf[1:], x)
		_, _ = h.Write(buf[:])
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			put(0, 0)
			return
		}
		v = v.Elem()
	}

	if v.Type() == timeType {
		// Unexported struct fields cannot be read as time.Time; equality still
		// decides.
		var ns uint64
		if v.CanInterface() {
			ns = uint64(v.Interface().(time.Time).UnixNano())
		}
		put(1, ns)
		return
	}
	switch v.Kind() {
	case reflect.Bool:
		var x uint64
		if v.Bool() {
			x = 1
		}
		put(2, x)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		put(3, uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		put(4, v.Uint())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f == 0 {
			f = 0 // -0 equals 0
		}
		put(5, math.Float64bits(f))
	case reflect.String:
		put(6, uint64(v.Len()))
		_, _ = h.WriteString(v.String())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			put(7, uint64(v.Len()))
			_, _ = h.Write(v.Bytes())
			return
		}
		put(8, uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			writeValue(h, v.Index(i))
		}
	case reflect.Array:
		put(8, uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			writeValue(h, v.Index(i))
		}
	case reflect.Struct:
		put(9, uint64(v.NumField()))
		for i := 0; i < v.NumField(); i++ {
			writeValue(h, v.Field(i))
		}
	default:
		// Maps, channels and funcs hash by kind only; equality still decides.
		put(10, uint64(v.Kind()))
	}
}
