// Package schema builds row decoders from JSON shape documents, so a query
// job can describe its result layout in configuration instead of a compiled
// Go struct.
//
// A shape compiles to a fromrow.Container bound to a struct type synthesized
// with reflect.StructOf. Field names are turned into exported Go identifiers;
// the original names are kept as JSON tags so decoded values encode back to
// the names used in the shape.
//
// Example (a group-merged author with its books):
//
//	{
//	  "name": "author",
//	  "partition": "split",
//	  "merge": "group",
//	  "fields": [
//	    { "name": "id",    "type": "bigint", "key": true },
//	    { "name": "name",  "type": "text" },
//	    { "name": "books", "split": true, "merge": true,
//	      "shape": { "name": "book", "fields": [
//	        { "name": "id",    "type": "bigint" },
//	        { "name": "title", "type": "text?" }
//	      ] } }
//	  ]
//	}
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"rowquery/pkg/fromrow"
)

// ErrUnknownType is returned for a field type name that has no mapping.
var ErrUnknownType = errors.New("unknown field type")

// Shape is the JSON description of one container.
type Shape struct {
	// Name is used in diagnostics; it defaults to "row".
	Name string `json:"name"`

	// Partition is "", "none", "split" or "exact".
	Partition string `json:"partition,omitempty"`

	// Merge is "", "none", "group" or "hash".
	Merge string `json:"merge,omitempty"`

	Fields []Field `json:"fields"`
}

// Field is one declared field of a shape.
type Field struct {
	Name string `json:"name"`

	// Type names a scalar column type (see Types). It is ignored when Shape is
	// set.
	Type string `json:"type,omitempty"`

	Split  bool `json:"split,omitempty"`
	Stride int  `json:"stride,omitempty"`
	Key    bool `json:"key,omitempty"`
	Merge  bool `json:"merge,omitempty"`

	// Optional makes a split field nil when all of its columns are NULL.
	Optional bool `json:"optional,omitempty"`

	// Shape describes a nested container. It requires Split, or a Stride for
	// struct elements of an exact sequence; a split merge field accumulates
	// nested values.
	Shape *Shape `json:"shape,omitempty"`
}

// Build compiles s into a decoding plan. Descriptor errors from the
// validator are returned unchanged, so callers can match them with
// errors.Is(err, fromrow.ErrAttributeConflict).
func Build(s Shape) (*fromrow.Plan, error) {
	c, err := s.Container()
	if err != nil {
		return nil, err
	}
	return fromrow.NewPlan(c)
}

// Container converts s into a descriptor bound to a synthesized struct type.
// It does not validate attribute combinations.
func (s Shape) Container() (*fromrow.Container, error) {
	return s.container(map[*Shape]bool{})
}

func (s *Shape) container(seen map[*Shape]bool) (*fromrow.Container, error) {
	if seen[s] {
		return nil, fmt.Errorf("schema: shape %q contains itself", s.name())
	}
	seen[s] = true
	defer delete(seen, s)

	part, err := parsePartition(s.Partition)
	if err != nil {
		return nil, fmt.Errorf("schema: shape %q: %w", s.name(), err)
	}
	merge, err := parseMerge(s.Merge)
	if err != nil {
		return nil, fmt.Errorf("schema: shape %q: %w", s.name(), err)
	}

	c := &fromrow.Container{
		Name:      s.name(),
		Pos:       fromrow.Pos{Type: s.name(), Index: -1},
		Partition: part,
		Merge:     merge,
	}

	names := newNamer()
	structFields := make([]reflect.StructField, 0, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("schema: shape %q: field %d has no name", s.name(), i)
		}

		p := fromrow.Property{
			Name:   f.Name,
			Pos:    fromrow.Pos{Type: s.name(), Field: f.Name, Index: i},
			Split:  f.Split,
			Stride: f.Stride,
			Key:    f.Key,
			Merge:  f.Merge,
			Index:  i,
		}

		var elem reflect.Type
		if f.Shape != nil {
			if !f.Split && f.Stride == 0 {
				return nil, fmt.Errorf("schema: %s.%s: a nested shape needs `split` or `stride`: %w",
					s.name(), f.Name, fromrow.ErrInvalidLayout)
			}
			nested, err := f.Shape.container(seen)
			if err != nil {
				return nil, err
			}
			p.Nested = nested
			elem = nested.Type
			if f.Optional {
				elem = reflect.PointerTo(elem)
			}
		} else {
			elem, err = TypeOf(f.Type)
			if err != nil {
				return nil, fmt.Errorf("schema: %s.%s: %w", s.name(), f.Name, err)
			}
		}
		if f.Merge || f.Stride != 0 {
			elem = reflect.SliceOf(elem)
		}
		p.Type = elem
		c.Props = append(c.Props, p)

		structFields = append(structFields, reflect.StructField{
			Name: names.next(f.Name),
			Type: elem,
			Tag:  reflect.StructTag(fmt.Sprintf(`json:%q`, f.Name)),
		})
	}
	c.Type = reflect.StructOf(structFields)
	return c, nil
}

func (s *Shape) name() string {
	if s.Name == "" {
		return "row"
	}
	return s.Name
}

func parsePartition(s string) (fromrow.PartitionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return fromrow.PartitionNone, nil
	case "split":
		return fromrow.PartitionSplit, nil
	case "exact":
		return fromrow.PartitionExact, nil
	}
	return 0, fmt.Errorf("unknown partition %q", s)
}

func parseMerge(s string) (fromrow.MergeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return fromrow.MergeNone, nil
	case "group":
		return fromrow.MergeGroup, nil
	case "hash":
		return fromrow.MergeHash, nil
	}
	return 0, fmt.Errorf("unknown merge %q", s)
}
