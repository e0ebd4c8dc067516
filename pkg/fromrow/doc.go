// Package fromrow decodes query result rows into Go values.
//
// A result row is an ordered slice of column values. fromrow maps that flat
// slice onto a tree of struct fields using a Container descriptor: which
// fields are nested containers, which are fixed-stride sequences, and (for
// multi-row decoding) which fields form the grouping key and which fields are
// accumulated across rows that share a key.
//
// Descriptors are normally derived from struct tags:
//
//	type Book struct {
//	    ID    int64
//	    Title string
//	}
//
//	type Author struct {
//	    _     struct{} `row:"split,group"`
//	    ID    int64    `row:"key"`
//	    Name  string
//	    Books []Book   `row:"split,merge"`
//	}
//
//	authors, err := fromrow.Collect[Author](ctx, rows)
//
// Container attributes go on a blank marker field:
//
//   - split: fields tagged `split` claim a variable-width sub-range of the
//     row, decoded by the nested container.
//   - exact: the field tagged `stride=N` is a sequence that consumes every
//     remaining column, N columns per element.
//   - group: consecutive rows with equal keys fold into one value.
//   - hash:  rows with equal keys fold into one value regardless of order.
//
// Field attributes are `split`, `stride=N`, `key`, `merge` and `-` (skip).
//
// Layout policy: plain fields are one column wide, split fields are as wide as
// their container, and a stride sequence is unbounded. Only the last field of
// a container may be unbounded.
//
// Descriptors are validated once per type, before any row is read, and the
// resulting Plan is cached for the life of the process. Plans are immutable
// and safe for concurrent use.
//
// A pointer split field is nil when every column of its range is NULL. For a
// merge field of pointers ([]*T) such a row contributes no element, so a LEFT
// JOIN parent without children decodes with an empty slice.
//
// Multi-row decoding aborts on the first error. Partial groups are discarded.
package fromrow
