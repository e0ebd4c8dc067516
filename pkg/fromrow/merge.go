package fromrow

import (
	"context"
	"fmt"
	"iter"
	"reflect"
)

// Option tunes multi-row decoding.
type Option func(*options)

type options struct {
	lenient bool
}

// Lenient keeps the first row's value for fields that are neither key nor
// merge, instead of failing when a later row of the same group disagrees.
func Lenient() Option {
	return func(o *options) { o.lenient = true }
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// collector decides which earlier group, if any, a row's key joins.
type collector interface {
	find(k groupKey) (int, bool)
	add(k groupKey, idx int)
}

func newCollector(kind MergeKind) collector {
	switch kind {
	case MergeGroup:
		return &appendCollector{}
	case MergeHash:
		return &keyedCollector{buckets: map[uint64][]keyedSlot{}}
	}
	return distinctCollector{}
}

// appendCollector only looks at the most recent group, so equal keys that are
// not adjacent start separate groups.
type appendCollector struct {
	last int
	key  groupKey
	has  bool
}

func (c *appendCollector) find(k groupKey) (int, bool) {
	if c.has && c.key.equal(k) {
		return c.last, true
	}
	return 0, false
}

func (c *appendCollector) add(k groupKey, idx int) {
	c.key, c.last, c.has = k, idx, true
}

// keyedCollector finds a group by key anywhere in the stream. Buckets are
// keyed by the xxh3 sum; collisions are resolved by comparing values.
type keyedCollector struct {
	buckets map[uint64][]keyedSlot
}

type keyedSlot struct {
	key groupKey
	idx int
}

func (c *keyedCollector) find(k groupKey) (int, bool) {
	for _, s := range c.buckets[k.sum] {
		if s.key.equal(k) {
			return s.idx, true
		}
	}
	return 0, false
}

func (c *keyedCollector) add(k groupKey, idx int) {
	c.buckets[k.sum] = append(c.buckets[k.sum], keyedSlot{key: k, idx: idx})
}

// distinctCollector never joins rows; every row is its own value.
type distinctCollector struct{}

func (distinctCollector) find(groupKey) (int, bool) { return 0, false }
func (distinctCollector) add(groupKey, int)         {}

type group struct {
	key groupKey
	val reflect.Value
}

// fold pulls rows one at a time and folds them into groups using col. The
// first error aborts the fold and discards every partial group.
func (p *Plan) fold(ctx context.Context, rows Rows, o options, col collector) ([]group, error) {
	var groups []group
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rows.Next() {
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("fromrow: row %d: %w", i, err)
		}
		v, err := p.DecodeRow(vals)
		if err != nil {
			return nil, atRow(err, i)
		}

		k := keyOf(p.root, v)
		if idx, ok := col.find(k); ok {
			if err := mergeInto(p.root, groups[idx].val, v, o.lenient); err != nil {
				return nil, atRow(err, i)
			}
			continue
		}
		col.add(k, len(groups))
		groups = append(groups, group{key: k, val: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fromrow: rows: %w", err)
	}
	return groups, nil
}

// mergeInto appends src's merge fields onto dst and checks that the fields
// fixed by the group's first row agree.
func mergeInto(n *node, dst, src reflect.Value, lenient bool) error {
	if !lenient {
		for _, fi := range n.fixed {
			f := &n.fields[fi]
			a, b := dst.Field(f.prop.Index), src.Field(f.prop.Index)
			if !valuesEqual(a, b) {
				return &DecodeError{
					Row: -1, Column: f.offset, Field: f.prop.Pos.String(),
					Msg: fmt.Sprintf("group has %v, row has %v", a.Interface(), b.Interface()),
					Err: ErrInconsistentGroup,
				}
			}
		}
	}
	for _, fi := range n.merges {
		idx := n.fields[fi].prop.Index
		d := dst.Field(idx)
		d.Set(reflect.AppendSlice(d, src.Field(idx)))
	}
	return nil
}

// Collect decodes every row and folds them according to the container's
// merge kind: one value per row, one per run of equal keys (group), or one per
// distinct key in first-seen order (hash).
func (p *Plan) Collect(ctx context.Context, rows Rows, opts ...Option) ([]reflect.Value, error) {
	groups, err := p.fold(ctx, rows, buildOptions(opts), newCollector(p.root.c.Merge))
	if err != nil {
		return nil, err
	}
	out := make([]reflect.Value, len(groups))
	for i, g := range groups {
		out[i] = g.val
	}
	return out, nil
}

// Each decodes rows one at a time and hands each value to fn without
// accumulating. It requires a container that does not merge rows.
func (p *Plan) Each(ctx context.Context, rows Rows, fn func(reflect.Value) error) error {
	if m := p.root.c.Merge; m != MergeNone {
		return fmt.Errorf("fromrow: %s merges rows (%s); use Collect", p.root.c.Name, m)
	}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rows.Next() {
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("fromrow: row %d: %w", i, err)
		}
		v, err := p.DecodeRow(vals)
		if err != nil {
			return atRow(err, i)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("fromrow: rows: %w", err)
	}
	return nil
}

// Collect decodes rows into T values; see Plan.Collect.
func Collect[T any](ctx context.Context, rows Rows, opts ...Option) ([]T, error) {
	p, err := planFor[T]()
	if err != nil {
		return nil, err
	}
	vals, err := p.Collect(ctx, rows, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(vals))
	for i, v := range vals {
		out[i] = v.Interface().(T)
	}
	return out, nil
}

// Each decodes rows one at a time into T and calls fn for each.
func Each[T any](ctx context.Context, rows Rows, fn func(T) error) error {
	p, err := planFor[T]()
	if err != nil {
		return err
	}
	return p.Each(ctx, rows, func(v reflect.Value) error {
		return fn(v.Interface().(T))
	})
}

// One decodes a result that must hold exactly one value of T.
func One[T any](ctx context.Context, rows Rows, opts ...Option) (T, error) {
	var zero T
	vals, err := Collect[T](ctx, rows, opts...)
	if err != nil {
		return zero, err
	}
	switch len(vals) {
	case 0:
		return zero, ErrNoRows
	case 1:
		return vals[0], nil
	}
	return zero, fmt.Errorf("%w: got %d", ErrTooManyRows, len(vals))
}

// Index maps keys to the values folded by a hash container. Iteration order is
// the order in which keys were first seen.
type Index[T any] struct {
	root   *node
	keys   []groupKey
	vals   []T
	lookup *keyedCollector
}

// CollectIndex folds rows of a hash container into an Index.
func CollectIndex[T any](ctx context.Context, rows Rows, opts ...Option) (*Index[T], error) {
	p, err := planFor[T]()
	if err != nil {
		return nil, err
	}
	if m := p.root.c.Merge; m != MergeHash {
		return nil, fmt.Errorf("fromrow: CollectIndex needs a hash container, %s is %s", p.root.c.Name, m)
	}
	col := &keyedCollector{buckets: map[uint64][]keyedSlot{}}
	groups, err := p.fold(ctx, rows, buildOptions(opts), col)
	if err != nil {
		return nil, err
	}
	ix := &Index[T]{
		root:   p.root,
		keys:   make([]groupKey, len(groups)),
		vals:   make([]T, len(groups)),
		lookup: col,
	}
	for i, g := range groups {
		ix.keys[i] = g.key
		ix.vals[i] = g.val.Interface().(T)
	}
	return ix, nil
}

// Get returns the value for the given key field values, in declaration order.
// Values are converted to the key field types, so Get(1) finds an int64 key.
func (ix *Index[T]) Get(key ...any) (T, bool) {
	var zero T
	k, err := keyFromArgs(ix.root, key)
	if err != nil {
		return zero, false
	}
	idx, ok := ix.lookup.find(k)
	if !ok {
		return zero, false
	}
	return ix.vals[idx], true
}

// Len returns the number of distinct keys.
func (ix *Index[T]) Len() int { return len(ix.vals) }

// Keys returns every key tuple in first-seen order.
func (ix *Index[T]) Keys() [][]any {
	out := make([][]any, len(ix.keys))
	for i, k := range ix.keys {
		out[i] = k.values()
	}
	return out
}

// Values returns the folded values in first-seen key order.
func (ix *Index[T]) Values() []T { return ix.vals }

// All iterates over key tuples and their values in first-seen order.
func (ix *Index[T]) All() iter.Seq2[[]any, T] {
	return func(yield func([]any, T) bool) {
		for i, k := range ix.keys {
			if !yield(k.values(), ix.vals[i]) {
				return
			}
		}
	}
}
