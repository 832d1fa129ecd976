package validation

import (
	"fmt"
	"sort"
	"strings"
)

// Error collects field-level validation failures.
type Error struct {
	Fields map[string]string
}

// FieldError is one entry of Error.Details.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

func (e *Error) Error() string {
	details := e.Details()
	msgs := make([]string, 0, len(details))
	for _, d := range details {
		msgs = append(msgs, fmt.Sprintf("%s: %s", d.Field, d.Msg))
	}
	return strings.Join(msgs, "; ")
}

// Details returns the failures sorted by field name.
func (e *Error) Details() []FieldError {
	out := make([]FieldError, 0, len(e.Fields))
	for field, msg := range e.Fields {
		out = append(out, FieldError{Field: field, Msg: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func (e *Error) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// orNil returns e as an error, or nil when nothing was recorded.
func (e *Error) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
