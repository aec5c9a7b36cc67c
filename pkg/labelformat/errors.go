package labelformat

import (
	"errors"
	"fmt"
)

var ErrMalformedHeader = errors.New("Malformed header")
var ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrMalformedHeader)
var ErrUnexpectedEOF = errors.New("Unexpected end of file")
var ErrSchemaViolation = errors.New("Schema violation")
var ErrParse = errors.New("Parse error")
var ErrUserCancelled = errors.New("Cancelled by user")
var ErrUnknownFormat = errors.New("Unknown file format")

// ParseError is a malformed field. Line is 1-based, and zero when the
// format has no meaningful line numbers. Locator describes the position in
// terms of the format's own structure, eg "object 3".
type ParseError struct {
	Line    int
	Locator string
	Field   string
	Value   string
	Err     error // Underlying conversion error. May be nil.
}

func (e *ParseError) Error() string {
	where := e.Locator
	if e.Line > 0 {
		if where != "" {
			where += ", "
		}
		where += fmt.Sprintf("line %v", e.Line)
	}
	msg := fmt.Sprintf("Parse error at %v: invalid %v '%v'", where, e.Field, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// SchemaError is a missing or unexpected structural element
type SchemaError struct {
	Element string // Element that was expected
	Found   string // What we found instead (empty if nothing)
}

func (e *SchemaError) Error() string {
	if e.Found != "" {
		return fmt.Sprintf("Schema violation: expected <%v>, but found <%v>", e.Element, e.Found)
	}
	return fmt.Sprintf("Schema violation: missing <%v>", e.Element)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}
