package clickstream

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/shopperinsights/config"
)

// Supported source formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// LoadOptions tunes how a source is read.
type LoadOptions struct {
	// Sheet selects the worksheet for workbook sources; empty means the first sheet.
	Sheet string
	// MaxRows caps data rows; <= 0 uses config.DefaultMaxRowsPerLoad.
	MaxRows int
	// Format overrides extension-based detection.
	Format string
}

// FormatFromPath maps a file extension to a source format.
func FormatFromPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, true
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX, true
	}
	return "", false
}

// Load opens path and parses it into a validated Table.
func Load(ctx context.Context, path string, opts LoadOptions) (*Table, error) {
	format := opts.Format
	if format == "" {
		f, ok := FormatFromPath(path)
		if !ok {
			return nil, &ParseError{Kind: ParseUnsupported, Value: filepath.Ext(path)}
		}
		format = f
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("clickstream: open %s: %w", path, err)
	}
	defer fh.Close()

	opts.Format = format
	t, err := Read(ctx, fh, opts)
	if err != nil {
		return nil, err
	}
	t.Source = path
	return t, nil
}

// Read parses a CSV or XLSX stream according to opts.Format (CSV when empty).
func Read(ctx context.Context, r io.Reader, opts LoadOptions) (*Table, error) {
	switch opts.Format {
	case "", FormatCSV:
		return ReadCSV(ctx, r, opts)
	case FormatXLSX:
		return ReadXLSX(ctx, r, opts)
	}
	return nil, &ParseError{Kind: ParseUnsupported, Value: opts.Format}
}

// ReadCSV parses delimited text with a header row. The delimiter is detected
// from the header line among ',', ';' and tab.
func ReadCSV(ctx context.Context, r io.Reader, opts LoadOptions) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Kind: ParseMalformed, Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Kind: ParseMalformed, Err: fmt.Errorf("missing header row")}
	}
	if err != nil {
		return nil, &ParseError{Kind: ParseMalformed, Err: err}
	}

	b, err := newBuilder(header, opts)
	if err != nil {
		return nil, err
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Kind: ParseMalformed, Row: len(b.events) + 1, Err: err}
		}
		if err := b.add(ctx, rec); err != nil {
			return nil, err
		}
	}
	return b.table(ctx, FormatCSV), nil
}

// ReadXLSX parses the first (or named) worksheet of a workbook. Row one is the header.
func ReadXLSX(ctx context.Context, r io.Reader, opts LoadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Kind: ParseMalformed, Err: err}
	}
	defer f.Close()

	sheet := strings.TrimSpace(opts.Sheet)
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &ParseError{Kind: ParseMalformed, Err: fmt.Errorf("workbook has no sheets")}
		}
		sheet = sheets[0]
	}
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, &ParseError{Kind: ParseMalformed, Err: err}
	}
	defer rows.Close()

	var b *builder
	for rows.Next() {
		// Raw values keep date cells as serial numbers instead of their display format.
		vals, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, &ParseError{Kind: ParseMalformed, Err: err}
		}
		if b == nil {
			if blank(vals) {
				continue
			}
			if b, err = newBuilder(vals, opts); err != nil {
				return nil, err
			}
			b.parseTime = func(v string) (time.Time, bool) { return parseCellTimestamp(v, date1904) }
			continue
		}
		// Workbooks often carry formatted but empty trailing rows.
		if blank(vals) {
			continue
		}
		if err := b.add(ctx, vals); err != nil {
			return nil, err
		}
	}
	if err := rows.Error(); err != nil {
		return nil, &ParseError{Kind: ParseMalformed, Err: err}
	}
	if b == nil {
		return nil, &ParseError{Kind: ParseMalformed, Err: fmt.Errorf("missing header row")}
	}
	return b.table(ctx, FormatXLSX), nil
}

// builder maps raw records onto Events using a resolved header index.
type builder struct {
	idx       map[string]int
	width     int
	maxRows   int
	parseTime func(string) (time.Time, bool)
	events    []Event
}

func newBuilder(header []string, opts LoadOptions) (*builder, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Kind: MissingColumn, Fields: missing}
	}
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = config.DefaultMaxRowsPerLoad
	}
	return &builder{idx: idx, width: len(header), maxRows: maxRows, parseTime: ParseTimestamp}, nil
}

func (b *builder) add(ctx context.Context, rec []string) error {
	row := len(b.events) + 1
	if row > b.maxRows {
		return &ParseError{Kind: ParseTooLarge, Row: row, Err: fmt.Errorf("limit is %d rows", b.maxRows)}
	}
	if row%4096 == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	get := func(col string) string {
		i := b.idx[col]
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	raw := get(ColTimestamp)
	ts, ok := b.parseTime(raw)
	if !ok {
		return &ParseError{Kind: ParseBadTimestamp, Row: row, Column: ColTimestamp, Value: raw}
	}
	b.events = append(b.events, Event{
		Row:        row,
		UserID:     get(ColUserID),
		SessionID:  get(ColSessionID),
		Timestamp:  ts,
		PageType:   get(ColPageType),
		ProductID:  get(ColProductID),
		Category:   get(ColCategory),
		Action:     get(ColAction),
		DeviceType: get(ColDeviceType),
		Platform:   get(ColPlatform),
	})
	return nil
}

func (b *builder) table(ctx context.Context, format string) *Table {
	zerolog.Ctx(ctx).Debug().Str("format", format).Int("rows", len(b.events)).Int("columns", b.width).Msg("clickstream loaded")
	return NewTable("", format, b.events)
}

// NormalizeHeader lowercases a header and folds spaces and hyphens to underscores,
// so "User_ID", "user id" and "User-Id" all resolve to user_id.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06 15:04",
	"1/2/06",
}

// ParseTimestamp accepts the common ISO, US and Unix-seconds encodings.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// maxExcelSerial is 9999-12-31 in the 1900 date system; larger numbers are
// treated as Unix seconds.
const maxExcelSerial = 2958466

// parseCellTimestamp reads a raw workbook cell. Date cells arrive as day serials
// and are converted with the workbook's date system; text falls back to
// ParseTimestamp.
func parseCellTimestamp(s string, date1904 bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 && v < maxExcelSerial {
		t, err := excelize.ExcelDateToTime(v, date1904)
		if err == nil {
			return t.UTC(), true
		}
	}
	return ParseTimestamp(s)
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func blank(vals []string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
