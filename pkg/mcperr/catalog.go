package mcperr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinodismyname/shopperinsights/internal/analytics"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
	"github.com/vinodismyname/shopperinsights/internal/datasets"
	"github.com/vinodismyname/shopperinsights/internal/runtime"
	"github.com/vinodismyname/shopperinsights/internal/security"
	"github.com/vinodismyname/shopperinsights/pkg/pagination"
)

// Code is a canonical tool error code.
type Code string

const (
	// Input
	Validation    Code = "VALIDATION"
	InvalidHandle Code = "INVALID_HANDLE"
	CursorInvalid Code = "CURSOR_INVALID"

	// Resources
	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	LimitExceeded   Code = "LIMIT_EXCEEDED"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"

	// Data
	ParseFailed       Code = "PARSE_FAILED"
	InsufficientData  Code = "INSUFFICIENT_DATA"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	AnalysisFailed    Code = "ANALYSIS_FAILED"

	// IO
	OpenFailed       Code = "OPEN_FAILED"
	WriteFailed      Code = "WRITE_FAILED"
	PermissionDenied Code = "PERMISSION_DENIED"
)

// Entry documents a code's default message and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

var catalog = map[Code]Entry{
	Validation:    {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry"}},
	InvalidHandle: {Code: InvalidHandle, Message: "dataset handle not found or expired", Retryable: true, NextSteps: []string{"Reopen the file with open_dataset and retry"}},
	CursorInvalid: {Code: CursorInvalid, Message: "cursor is invalid for this dataset", Retryable: true, NextSteps: []string{"Restart pagination from the first page"}},

	BusyResource:    {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:         {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Retry with fewer clusters or a smaller file"}},
	LimitExceeded:   {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Close unused datasets with close_dataset", "Lower page size"}},
	PayloadTooLarge: {Code: PayloadTooLarge, Message: "payload exceeds configured size", Retryable: true, NextSteps: []string{"Use a narrower tool instead of clickstream_report", "Page through segment_users"}},

	ParseFailed:       {Code: ParseFailed, Message: "clickstream file could not be parsed", Retryable: false, NextSteps: []string{"Check the reported row and value", "Timestamps must be ISO 8601, YYYY-MM-DD HH:MM:SS or Unix seconds"}},
	InsufficientData:  {Code: InsufficientData, Message: "not enough data for this analysis", Retryable: false, NextSteps: []string{"Load a larger batch", "Lower clusters for segment_users"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported file format", Retryable: false, NextSteps: []string{"Provide a .csv or .xlsx file"}},
	AnalysisFailed:    {Code: AnalysisFailed, Message: "analysis failed", Retryable: true, NextSteps: []string{"Retry; reopen the dataset if it persists"}},

	OpenFailed:       {Code: OpenFailed, Message: "failed to open file", Retryable: true, NextSteps: []string{"Verify path, permissions and format"}},
	WriteFailed:      {Code: WriteFailed, Message: "failed to write export", Retryable: false, NextSteps: []string{"Choose an allowed output directory"}},
	PermissionDenied: {Code: PermissionDenied, Message: "path is outside the allowed directories", Retryable: false, NextSteps: []string{"Use a file under SHOPPERINSIGHTS_ALLOWED_DIRS"}},
}

// Lookup returns the catalog entry for code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// normalize renders "CODE: message | nextSteps: ..." for clients that only
// surface the message text.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", code, base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string and returns the enriched tool error.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	code, msg, _ := strings.Cut(t, ":")
	return mcp.NewToolResultError(normalize(Code(strings.TrimSpace(code)), strings.TrimSpace(msg)))
}

// New returns a tool error for code with an optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns a tool error for code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// CodeOf classifies err into a catalog code; fallback is used for anything unknown.
func CodeOf(err error, fallback Code) Code {
	var pe *clickstream.ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe) && pe.Kind == clickstream.ParseUnsupported:
		return UnsupportedFormat
	case errors.As(err, &pe) && pe.Kind == clickstream.ParseTooLarge:
		return LimitExceeded
	case errors.Is(err, clickstream.ErrParse):
		return ParseFailed
	case errors.Is(err, clickstream.ErrValidation):
		return Validation
	case errors.Is(err, analytics.ErrInsufficientData):
		return InsufficientData
	case errors.Is(err, pagination.ErrInvalidCursor):
		return CursorInvalid
	case errors.Is(err, datasets.ErrHandleNotFound):
		return InvalidHandle
	case errors.Is(err, runtime.ErrDatasetCapacity):
		return LimitExceeded
	case errors.Is(err, security.ErrPathDenied):
		return PermissionDenied
	case errors.Is(err, security.ErrUnsupportedExtension):
		return UnsupportedFormat
	case errors.Is(err, security.ErrNotFound):
		return OpenFailed
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}
	return fallback
}

// FromError maps a domain error to a tool error, keeping its message.
func FromError(err error, fallback Code) *mcp.CallToolResult {
	return New(CodeOf(err, fallback), err.Error())
}
