package clickstream

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks across the loader boundary.
var (
	ErrParse      = errors.New("clickstream: parse error")
	ErrValidation = errors.New("clickstream: validation error")
)

// ParseKind classifies a ParseError.
type ParseKind string

const (
	ParseMalformed    ParseKind = "malformed"
	ParseBadTimestamp ParseKind = "timestamp"
	ParseUnsupported  ParseKind = "unsupported_format"
	ParseTooLarge     ParseKind = "too_large"
)

// ParseError reports malformed tabular input or an unparseable timestamp.
type ParseError struct {
	Kind   ParseKind
	Row    int // 1-based data row; 0 when not row specific
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("clickstream: ")
	switch e.Kind {
	case ParseBadTimestamp:
		fmt.Fprintf(&b, "row %d: cannot parse %s %q", e.Row, e.Column, e.Value)
	case ParseTooLarge:
		b.WriteString("input exceeds row limit")
	case ParseUnsupported:
		fmt.Fprintf(&b, "unsupported format %q", e.Value)
	default:
		b.WriteString("malformed input")
		if e.Row > 0 {
			fmt.Fprintf(&b, " at row %d", e.Row)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationKind classifies a ValidationError.
type ValidationKind string

const (
	MissingColumn ValidationKind = "missing_column"
	InvalidOption ValidationKind = "invalid_option"
)

// ValidationError reports structurally valid input that violates the contract,
// such as a missing required column.
type ValidationError struct {
	Kind   ValidationKind
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Kind == MissingColumn:
		return "clickstream: missing required columns: " + strings.Join(e.Fields, ", ")
	case e.Msg != "":
		return "clickstream: " + e.Msg
	default:
		return "clickstream: invalid " + strings.Join(e.Fields, ", ")
	}
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
