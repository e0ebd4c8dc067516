package fromrow

import (
	"fmt"
	"reflect"
)

// PartitionKind describes how a container divides one row's columns among
// its properties.
type PartitionKind int

const (
	// PartitionNone gives every property exactly one column.
	PartitionNone PartitionKind = iota
	// PartitionSplit lets split properties claim a nested sub-range.
	PartitionSplit
	// PartitionExact carves the trailing columns into fixed-stride elements.
	PartitionExact
)

func (k PartitionKind) String() string {
	switch k {
	case PartitionNone:
		return "none"
	case PartitionSplit:
		return "split"
	case PartitionExact:
		return "exact"
	}
	return fmt.Sprintf("PartitionKind(%d)", int(k))
}

// MergeKind describes how multiple rows collapse into container values.
type MergeKind int

const (
	// MergeNone decodes one value per row.
	MergeNone MergeKind = iota
	// MergeGroup folds runs of rows with equal keys, in encounter order.
	MergeGroup
	// MergeHash folds all rows with equal keys, regardless of order.
	MergeHash
)

func (k MergeKind) String() string {
	switch k {
	case MergeNone:
		return "none"
	case MergeGroup:
		return "group"
	case MergeHash:
		return "hash"
	}
	return fmt.Sprintf("MergeKind(%d)", int(k))
}

// Pos identifies a declaration for diagnostics. Field is empty and Index is
// -1 for container-level attributes.
type Pos struct {
	Type  string
	Field string
	Index int
}

func (p Pos) String() string {
	if p.Field == "" {
		return p.Type
	}
	if p.Type == "" {
		return p.Field
	}
	return p.Type + "." + p.Field
}

// Property is one declared field of a container.
type Property struct {
	Name string
	Pos  Pos

	Split  bool
	Stride int // 0 when the field carries no stride attribute
	Key    bool
	Merge  bool

	// Index is the struct field index; Type is the struct field type.
	Index int
	Type  reflect.Type

	// Nested describes split fields and struct elements of stride or merge
	// sequences. It is nil for scalar fields.
	Nested *Container
}

// HasStride reports whether the stride attribute is present.
func (p *Property) HasStride() bool { return p.Stride != 0 }

// Container describes a struct-like type: how its fields partition a row and
// how multiple rows merge into one value.
type Container struct {
	Name      string
	Pos       Pos
	Partition PartitionKind
	Merge     MergeKind
	Props     []Property

	// Type is the bound struct type. Descriptors that are only validated may
	// leave it nil.
	Type reflect.Type
}

// Keys returns the indexes (into Props) of the key properties.
func (c *Container) Keys() []int {
	return c.propsWhere(func(p *Property) bool { return p.Key })
}

// Merges returns the indexes (into Props) of the merge properties.
func (c *Container) Merges() []int {
	return c.propsWhere(func(p *Property) bool { return p.Merge })
}

func (c *Container) propsWhere(fn func(*Property) bool) []int {
	var out []int
	for i := range c.Props {
		if fn(&c.Props[i]) {
			out = append(out, i)
		}
	}
	return out
}
