package fromrow

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Concrete errors wrap one of these so callers can use errors.Is.
var (
	ErrAttributeConflict = errors.New("attribute conflict")
	ErrInvalidLayout     = errors.New("invalid layout")
	ErrRowTooShort       = errors.New("row too short")
	ErrRowTooLong        = errors.New("row too long")
	ErrStrideMismatch    = errors.New("stride mismatch")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrInconsistentGroup = errors.New("inconsistent group fields")

	ErrNoRows      = errors.New("no rows in result")
	ErrTooManyRows = errors.New("more than one row in result")
)

// AttributeError reports an invalid descriptor. Decoding is never attempted
// with a descriptor that produced one.
type AttributeError struct {
	Pos  Pos
	Attr string // offending attribute, e.g. "split", "stride", "key"
	Msg  string
	Kind error // ErrAttributeConflict or ErrInvalidLayout
}

func (e *AttributeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Pos.String())
	if e.Attr != "" {
		fmt.Fprintf(&b, ": `%s`", e.Attr)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

func (e *AttributeError) Unwrap() error { return e.Kind }

func conflict(pos Pos, attr, format string, args ...any) *AttributeError {
	return &AttributeError{Pos: pos, Attr: attr, Msg: fmt.Sprintf(format, args...), Kind: ErrAttributeConflict}
}

func badLayout(pos Pos, format string, args ...any) *AttributeError {
	return &AttributeError{Pos: pos, Msg: fmt.Sprintf(format, args...), Kind: ErrInvalidLayout}
}

// DecodeError reports a failure to decode one row. Row is the 0-based index of
// the row in its stream (-1 for single-row decoding), Column the 0-based
// column position where the failure was detected.
type DecodeError struct {
	Row    int
	Column int
	Field  string
	Msg    string
	Err    error
}

func (e *DecodeError) Error() string {
	var parts []string
	if e.Row >= 0 {
		parts = append(parts, fmt.Sprintf("row %d", e.Row))
	}
	parts = append(parts, fmt.Sprintf("column %d", e.Column))
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field %s", e.Field))
	}
	msg := e.Err.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return fmt.Sprintf("fromrow: %s: %s", strings.Join(parts, ", "), msg)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(kind error, col int, field, format string, args ...any) *DecodeError {
	return &DecodeError{Row: -1, Column: col, Field: field, Msg: fmt.Sprintf(format, args...), Err: kind}
}

// atRow stamps a row index onto a decode error.
func atRow(err error, row int) error {
	var de *DecodeError
	if errors.As(err, &de) {
		cp := *de
		cp.Row = row
		return &cp
	}
	return fmt.Errorf("row %d: %w", row, err)
}
