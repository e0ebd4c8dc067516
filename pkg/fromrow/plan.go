package fromrow

import (
	"fmt"
	"reflect"
)

// Plan is a validated, compiled descriptor bound to a struct type. Plans are
// immutable and safe for concurrent use.
type Plan struct {
	root *node
}

// NewPlan validates c and resolves its column layout. c must be bound to a
// struct type (Container.Type) and must not be modified afterwards.
func NewPlan(c *Container) (*Plan, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}
	root, err := compile(c)
	if err != nil {
		return nil, err
	}
	return &Plan{root: root}, nil
}

// Container returns the descriptor the plan was built from.
func (p *Plan) Container() *Container { return p.root.c }

// Type returns the bound struct type.
func (p *Plan) Type() reflect.Type { return p.root.c.Type }

// Width returns the number of columns one row must have. ok is false when the
// container ends in a variable-width field.
func (p *Plan) Width() (n int, ok bool) {
	if p.root.width == unbounded {
		return 0, false
	}
	return p.root.width, true
}

// DecodeRow decodes a single row into a new value of the bound type. Key and
// merge fields are ordinary fields here; a merge field receives a one-element
// slice.
func (p *Plan) DecodeRow(row []any) (reflect.Value, error) {
	v := reflect.New(p.root.c.Type).Elem()
	if err := decodeRow(p.root, row, v); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

func planFor[T any]() (*Plan, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("fromrow: %v is not a struct type", t)
	}
	return PlanOf(t)
}

// Decode decodes one row into a T.
func Decode[T any](row []any) (T, error) {
	var zero T
	p, err := planFor[T]()
	if err != nil {
		return zero, err
	}
	v, err := p.DecodeRow(row)
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// DecodeInto decodes one row into the struct pointed to by dst.
func DecodeInto(row []any, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("fromrow: DecodeInto needs a non-nil pointer, got %T", dst)
	}
	p, err := PlanOf(rv.Type().Elem())
	if err != nil {
		return err
	}
	v, err := p.DecodeRow(row)
	if err != nil {
		return err
	}
	rv.Elem().Set(v)
	return nil
}
