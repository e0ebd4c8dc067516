package runner

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"rowquery/internal/config"
)

// encoder writes decoded values either as one JSON array or as JSON lines.
type encoder struct {
	w      io.Writer
	lines  bool
	pretty bool
	n      int
}

func newEncoder(w io.Writer, format string, pretty bool) *encoder {
	return &encoder{w: w, lines: format == config.FormatJSONL, pretty: pretty}
}

func (e *encoder) value(v reflect.Value) error {
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return err
	}
	if e.lines {
		_, err = e.w.Write(append(b, '\n'))
		return err
	}

	sep := ","
	if e.n == 0 {
		sep = "["
	}
	if e.pretty {
		var ib bytes.Buffer
		if err := json.Indent(&ib, b, "  ", "  "); err != nil {
			return err
		}
		b = ib.Bytes()
		sep += "\n  "
	}
	e.n++
	if _, err := io.WriteString(e.w, sep); err != nil {
		return err
	}
	_, err = e.w.Write(b)
	return err
}

func (e *encoder) close() error {
	if e.lines {
		return nil
	}
	var tail string
	switch {
	case e.n == 0:
		tail = "[]\n"
	case e.pretty:
		tail = "\n]\n"
	default:
		tail = "]\n"
	}
	_, err := io.WriteString(e.w, tail)
	return err
}
