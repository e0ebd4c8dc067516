package fromrow

import (
	"database/sql"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TagName is the struct tag key read by Describe.
const TagName = "row"

var (
	scannerType = reflect.TypeFor[sql.Scanner]()
	timeType    = reflect.TypeFor[time.Time]()
)

// plans caches one compiled plan (or its error) per struct type.
var plans sync.Map // reflect.Type -> *planEntry

type planEntry struct {
	plan *Plan
	err  error
}

// PlanOf returns the cached plan for struct type t, building and validating
// it on first use. A descriptor error is cached as well, so a bad type fails
// the same way on every call without reading any rows.
func PlanOf(t reflect.Type) (*Plan, error) {
	if e, ok := plans.Load(t); ok {
		pe := e.(*planEntry)
		return pe.plan, pe.err
	}
	pe := &planEntry{}
	c, err := Describe(t)
	if err == nil {
		pe.plan, pe.err = NewPlan(c)
	} else {
		pe.err = err
	}
	e, _ := plans.LoadOrStore(t, pe)
	pe = e.(*planEntry)
	return pe.plan, pe.err
}

// Describe builds the Container descriptor of struct type t from its `row`
// tags. It does not validate attribute combinations; see Validate.
func Describe(t reflect.Type) (*Container, error) {
	return describe(t, map[reflect.Type]bool{})
}

func describe(t reflect.Type, seen map[reflect.Type]bool) (*Container, error) {
	if t.Kind() != reflect.Struct {
		return nil, badLayout(Pos{Type: t.String(), Index: -1}, "%v is not a struct", t)
	}
	if seen[t] {
		return nil, badLayout(Pos{Type: t.Name(), Index: -1}, "container %s contains itself", t)
	}
	seen[t] = true
	defer delete(seen, t)

	c := &Container{
		Name: t.Name(),
		Pos:  Pos{Type: t.Name(), Index: -1},
		Type: t,
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, tagged := sf.Tag.Lookup(TagName)

		if sf.Name == "_" {
			if tagged {
				if err := parseContainerTag(c, tag); err != nil {
					return nil, err
				}
			}
			continue
		}
		if !sf.IsExported() || tag == "-" {
			continue
		}

		p := Property{
			Name:  sf.Name,
			Pos:   Pos{Type: c.Name, Field: sf.Name, Index: i},
			Index: i,
			Type:  sf.Type,
		}
		if err := parseFieldTag(&p, tag); err != nil {
			return nil, err
		}
		if nt := nestedType(&p); nt != nil {
			nested, err := describe(nt, seen)
			if err != nil {
				return nil, err
			}
			p.Nested = nested
		}
		c.Props = append(c.Props, p)
	}
	return c, nil
}

func parseContainerTag(c *Container, tag string) error {
	for _, opt := range splitTag(tag) {
		switch opt {
		case "split", "exact":
			kind := PartitionSplit
			if opt == "exact" {
				kind = PartitionExact
			}
			if c.Partition != PartitionNone && c.Partition != kind {
				return conflict(c.Pos, opt, "container already declares `%s`", c.Partition)
			}
			c.Partition = kind
		case "group", "hash":
			kind := MergeGroup
			if opt == "hash" {
				kind = MergeHash
			}
			if c.Merge != MergeNone && c.Merge != kind {
				return conflict(c.Pos, opt, "container already declares `%s`", c.Merge)
			}
			c.Merge = kind
		default:
			return conflict(c.Pos, opt, "unknown container attribute")
		}
	}
	return nil
}

func parseFieldTag(p *Property, tag string) error {
	for _, opt := range splitTag(tag) {
		name, val, hasVal := strings.Cut(opt, "=")
		switch name {
		case "split":
			p.Split = true
		case "key":
			p.Key = true
		case "merge":
			p.Merge = true
		case "stride":
			if !hasVal {
				return conflict(p.Pos, "stride", "stride needs a value, e.g. `stride=2`")
			}
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return conflict(p.Pos, "stride", "stride must be a positive integer, got %q", val)
			}
			p.Stride = n
		default:
			return conflict(p.Pos, opt, "unknown field attribute")
		}
	}
	return nil
}

func splitTag(tag string) []string {
	var out []string
	for _, s := range strings.Split(tag, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// nestedType returns the struct type a property decodes as a nested
// container, or nil when the property is a single-column scalar.
func nestedType(p *Property) reflect.Type {
	t := p.Type
	if (p.Merge || p.HasStride()) && t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if p.Split {
		return t
	}
	if p.HasStride() && !isScalar(t) {
		return t
	}
	return nil
}

// isScalar reports whether struct type t decodes from a single column.
func isScalar(t reflect.Type) bool {
	return t == timeType || reflect.PointerTo(t).Implements(scannerType)
}
