package fromrow

import (
	"reflect"
)

// unbounded marks a field or container that consumes every remaining column.
const unbounded = -1

// node is the compiled form of a Container: resolved column widths plus the
// reflect plumbing the decoder needs.
type node struct {
	c      *Container
	width  int // total columns, or unbounded
	fields []field
	keys   []int // indexes into fields
	merges []int
	// fixed are the fields that must agree across the rows of one group.
	fixed []int
}

type field struct {
	prop   *Property
	width  int // columns consumed per row, or unbounded
	offset int // first column, relative to the container

	// elem is the type decoded per row (merge) or per element (stride); it
	// equals prop.Type for plain and split fields.
	elem reflect.Type
	// ptr is set when elem is a pointer to the nested struct.
	ptr    bool
	nested *node
}

func (f *field) sequence() bool { return f.prop.Merge || f.prop.HasStride() }

// compile resolves the layout of a validated container. Only the last field
// of a container may be unbounded, and every stride must match the width of
// its element.
func compile(c *Container) (*node, error) {
	return compileNode(c, map[*Container]bool{})
}

func compileNode(c *Container, seen map[*Container]bool) (*node, error) {
	if seen[c] {
		return nil, badLayout(c.Pos, "container %s contains itself", c.Name)
	}
	seen[c] = true
	defer delete(seen, c)

	if c.Type == nil {
		return nil, badLayout(c.Pos, "container %s is not bound to a type", c.Name)
	}
	if c.Type.Kind() != reflect.Struct {
		return nil, badLayout(c.Pos, "container %s is bound to %s, want a struct", c.Name, c.Type)
	}

	n := &node{c: c, fields: make([]field, len(c.Props))}
	for i := range c.Props {
		p := &c.Props[i]
		f, err := compileField(c, p, seen)
		if err != nil {
			return nil, err
		}
		n.fields[i] = f

		switch {
		case p.Key:
			n.keys = append(n.keys, i)
		case p.Merge:
			n.merges = append(n.merges, i)
		default:
			n.fixed = append(n.fixed, i)
		}
	}

	for i := range n.fields {
		n.fields[i].offset = n.width
		if n.fields[i].width == unbounded {
			if i != len(n.fields)-1 {
				return nil, badLayout(n.fields[i].prop.Pos,
					"only the last field of a container may consume a variable number of columns")
			}
			n.width = unbounded
			break
		}
		n.width += n.fields[i].width
	}
	return n, nil
}

func compileField(c *Container, p *Property, seen map[*Container]bool) (field, error) {
	if p.Index < 0 || p.Index >= c.Type.NumField() {
		return field{}, badLayout(p.Pos, "field index %d out of range for %s", p.Index, c.Type)
	}
	if sf := c.Type.Field(p.Index); p.Type != sf.Type {
		return field{}, badLayout(p.Pos, "field type %v does not match %s.%s (%v)", p.Type, c.Type, sf.Name, sf.Type)
	}

	f := field{prop: p, elem: p.Type, width: 1}
	if f.sequence() {
		if p.Type.Kind() != reflect.Slice {
			return field{}, badLayout(p.Pos, "%s field must be a slice, got %v", seqAttr(p), p.Type)
		}
		f.elem = p.Type.Elem()
	}
	if p.Merge && p.HasStride() {
		return field{}, badLayout(p.Pos, "a merge field cannot carry a stride")
	}

	target := f.elem
	if target.Kind() == reflect.Pointer && target.Elem().Kind() == reflect.Struct && p.Nested != nil {
		f.ptr = true
		target = target.Elem()
	}

	// Outside a stride sequence, only split fields may span several columns.
	if p.Nested != nil && !p.Split && !p.HasStride() {
		return field{}, badLayout(p.Pos, "field %s holds nested container %s but is not `split`", p.Name, p.Nested.Name)
	}

	if p.Nested != nil {
		if p.Nested.Type != target {
			return field{}, badLayout(p.Pos, "nested container %s is bound to %v, field holds %v",
				p.Nested.Name, p.Nested.Type, target)
		}
		if p.Nested.Merge != MergeNone {
			return field{}, badLayout(p.Pos, "nested container %s cannot merge rows", p.Nested.Name)
		}
		nn, err := compileNode(p.Nested, seen)
		if err != nil {
			return field{}, err
		}
		f.nested = nn
		f.width = nn.width
	} else if p.Split {
		return field{}, badLayout(p.Pos, "split field %s has no nested container", p.Name)
	}

	if p.HasStride() {
		if f.width == unbounded {
			return field{}, badLayout(p.Pos, "stride element %v has no fixed width", f.elem)
		}
		if f.width != p.Stride {
			return field{}, badLayout(p.Pos, "stride %d does not match element width %d", p.Stride, f.width)
		}
		f.width = unbounded
	}
	return f, nil
}

func seqAttr(p *Property) string {
	if p.Merge {
		return "merge"
	}
	return "stride"
}
