package fromrow

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// assign stores one column value into dst. It covers the conversions drivers
// need in practice: NULL into nullable destinations, sql.Scanner, numeric
// widening and narrowing with overflow checks, and textual values from drivers
// that return []byte.
func assign(dst reflect.Value, src any) error {
	if src == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			dst.SetZero()
			return nil
		}
		if s, ok := scanner(dst); ok {
			return s.Scan(nil)
		}
		return fmt.Errorf("cannot store NULL in non-nullable %v", dst.Type())
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		if b, ok := src.([]byte); ok {
			// Drivers may reuse the buffer after Next.
			sv = reflect.ValueOf(append([]byte(nil), b...))
		}
		dst.Set(sv)
		return nil
	}
	if s, ok := scanner(dst); ok {
		return s.Scan(src)
	}
	// pgtype values such as Numeric and Date reduce to driver primitives.
	if vr, ok := src.(driver.Valuer); ok {
		v, err := vr.Value()
		if err != nil {
			return err
		}
		if _, again := v.(driver.Valuer); !again {
			return assign(dst, v)
		}
	}

	switch dst.Kind() {
	case reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil

	case reflect.String:
		s, ok := asString(src)
		if !ok {
			break
		}
		dst.SetString(s)
		return nil

	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		switch v := src.(type) {
		case string:
			dst.SetBytes([]byte(v))
			return nil
		case []byte:
			dst.SetBytes(append([]byte(nil), v...))
			return nil
		}

	case reflect.Bool:
		switch v := src.(type) {
		case bool:
			dst.SetBool(v)
			return nil
		case int64:
			if v == 0 || v == 1 {
				dst.SetBool(v == 1)
				return nil
			}
		case string, []byte:
			s, _ := asString(v)
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("cannot parse %q as bool", s)
			}
			dst.SetBool(b)
			return nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return assignInt(dst, sv)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return assignUint(dst, sv)

	case reflect.Float32, reflect.Float64:
		return assignFloat(dst, sv)

	case reflect.Struct:
		if dst.Type() == timeType {
			s, ok := asString(src)
			if !ok {
				break
			}
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					dst.Set(reflect.ValueOf(t))
					return nil
				}
			}
			return fmt.Errorf("cannot parse %q as time", s)
		}
	}

	if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() == dst.Kind() {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot convert %T to %v", src, dst.Type())
}

func scanner(dst reflect.Value) (sql.Scanner, bool) {
	if !dst.CanAddr() {
		return nil, false
	}
	s, ok := dst.Addr().Interface().(sql.Scanner)
	return s, ok
}

func asString(src any) (string, bool) {
	switch v := src.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	rv := reflect.ValueOf(src)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	}
	return "", false
}

func assignInt(dst, sv reflect.Value) error {
	var n int64
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = sv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := sv.Uint()
		if u > math.MaxInt64 {
			return fmt.Errorf("value %d overflows %v", u, dst.Type())
		}
		n = int64(u)
	case reflect.Float32, reflect.Float64:
		f := sv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return fmt.Errorf("value %v is not representable as %v", f, dst.Type())
		}
		n = int64(f)
	case reflect.String, reflect.Slice:
		s, ok := asString(sv.Interface())
		if !ok {
			return fmt.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse %q as %v", s, dst.Type())
		}
		n = v
	default:
		return fmt.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
	}
	if dst.OverflowInt(n) {
		return fmt.Errorf("value %d overflows %v", n, dst.Type())
	}
	dst.SetInt(n)
	return nil
}

func assignUint(dst, sv reflect.Value) error {
	var n uint64
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := sv.Int()
		if i < 0 {
			return fmt.Errorf("value %d overflows %v", i, dst.Type())
		}
		n = uint64(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n = sv.Uint()
	case reflect.String, reflect.Slice:
		s, ok := asString(sv.Interface())
		if !ok {
			return fmt.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
		}
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse %q as %v", s, dst.Type())
		}
		n = v
	default:
		return fmt.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
	}
	if dst.OverflowUint(n) {
		return fmt.Errorf("value %d overflows %v", n, dst.Type())
	}
	dst.SetUint(n)
	return nil
}

func assignFloat(dst, sv reflect.Value) error {
	var f float64
	switch sv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(sv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(sv.Uint())
	case reflect.Float32, reflect.Float64:
		f = sv.Float()
	case reflect.String, reflect.Slice:
		s, ok := asString(sv.Interface())
		if !ok {
			return fmt.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse %q as %v", s, dst.Type())
		}
		f = v
	default:
		return fmt.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
	}
	if dst.OverflowFloat(f) {
		return fmt.Errorf("value %v overflows %v", f, dst.Type())
	}
	dst.SetFloat(f)
	return nil
}
