package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

var scalarTypes = map[string]reflect.Type{
	"int":       reflect.TypeFor[int64](),
	"bigint":    reflect.TypeFor[int64](),
	"integer":   reflect.TypeFor[int64](),
	"smallint":  reflect.TypeFor[int16](),
	"float":     reflect.TypeFor[float64](),
	"real":      reflect.TypeFor[float32](),
	"numeric":   reflect.TypeFor[float64](),
	"decimal":   reflect.TypeFor[float64](),
	"text":      reflect.TypeFor[string](),
	"string":    reflect.TypeFor[string](),
	"bool":      reflect.TypeFor[bool](),
	"boolean":   reflect.TypeFor[bool](),
	"date":      reflect.TypeFor[time.Time](),
	"timestamp": reflect.TypeFor[time.Time](),
	"bytes":     reflect.TypeFor[[]byte](),
	"any":       reflect.TypeFor[any](),
}

// Types returns the accepted scalar type names, sorted. Any of them may carry
// a "?" suffix to accept NULL.
func Types() []string {
	out := make([]string, 0, len(scalarTypes))
	for k := range scalarTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TypeOf maps a scalar type name to its Go type. A "?" suffix makes the type
// nullable: a pointer, except for bytes and any which already hold NULL.
func TypeOf(name string) (reflect.Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	nullable := strings.HasSuffix(n, "?")
	n = strings.TrimSuffix(n, "?")
	if n == "" {
		return nil, fmt.Errorf("%w: empty type name", ErrUnknownType)
	}
	t, ok := scalarTypes[n]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, name)
	}
	if nullable && t.Kind() != reflect.Slice && t.Kind() != reflect.Interface {
		t = reflect.PointerTo(t)
	}
	return t, nil
}
