package series

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Format identifies the encoding of an input table.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options controls how an input table is read.
type Options struct {
	// DateColumn is the name of the date column. Defaults to "Date".
	DateColumn string
	// ValueColumn is the name of the daily count column. Defaults to "Tickets".
	ValueColumn string
	// DateLayout is tried before the built-in layouts when set.
	DateLayout string
	// Format selects the decoder. LoadFile infers it from the file extension
	// when empty; Load defaults to CSV.
	Format Format
	// RecordsPath is a gjson path to the record array inside a JSON
	// document. Empty means the document itself is the array.
	RecordsPath string
	// FillMissing forward-fills empty count cells from the previous row
	// (in date order) instead of rejecting them.
	FillMissing bool
}

// DefaultOptions returns the options matching the cleaned ticket dataset.
func DefaultOptions() Options {
	return Options{
		DateColumn:  "Date",
		ValueColumn: "Tickets",
		Format:      FormatCSV,
	}
}

func (o Options) withDefaults() Options {
	if o.DateColumn == "" {
		o.DateColumn = "Date"
	}
	if o.ValueColumn == "" {
		o.ValueColumn = "Tickets"
	}
	if o.Format == "" {
		o.Format = FormatCSV
	}
	return o
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
}

// rawRow is one data row before conversion. Row is 1-based.
type rawRow struct {
	row   int
	date  string
	value string
}

// Load reads a Dataset from r.
//
// It fails with *FormatError when the date or count column is absent, with
// *ParseError when a date or count cannot be converted (or a count is
// negative), and with ErrEmptySeries when no rows are present. The result is
// stable-sorted by date; ties keep input order.
func Load(r io.Reader, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()

	var (
		rows []rawRow
		err  error
	)
	switch opts.Format {
	case FormatCSV:
		rows, err = readCSV(r, opts)
	case FormatJSON:
		rows, err = readJSON(r, opts)
	default:
		return nil, fmt.Errorf("unsupported input format %q", opts.Format)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrEmptySeries
	}

	return convert(rows, opts)
}

// LoadFile opens path and reads it with Load. When opts.Format is empty the
// format is chosen from the extension (.json → JSON, anything else → CSV).
func LoadFile(path string, opts Options) (*Dataset, error) {
	if opts.Format == "" {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			opts.Format = FormatJSON
		} else {
			opts.Format = FormatCSV
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return Load(f, opts)
}

// FileLoader reads a dataset from a file on every Load call.
type FileLoader struct {
	Path    string
	Options Options
}

// Load implements the pipeline's dataset source.
func (l *FileLoader) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(l.Path, l.Options)
}

// utf8BOM is written at the start of CSV exports by some spreadsheet tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader, opts Options) ([]rawRow, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &FormatError{Reason: "missing header row"}
	}
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	dateIdx, valueIdx := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\""))
		switch h {
		case opts.DateColumn:
			dateIdx = i
		case opts.ValueColumn:
			valueIdx = i
		}
	}
	if dateIdx == -1 {
		return nil, &FormatError{Column: opts.DateColumn, Reason: "date column not found"}
	}
	if valueIdx == -1 {
		return nil, &FormatError{Column: opts.ValueColumn, Reason: "count column not found"}
	}

	var rows []rawRow
	for n := 1; ; n++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Reason: err.Error()}
		}

		row := rawRow{row: n}
		if dateIdx < len(record) {
			row.date = strings.TrimSpace(record[dateIdx])
		}
		if valueIdx < len(record) {
			row.value = strings.TrimSpace(record[valueIdx])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

func parseDate(s, layout string) (time.Time, error) {
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date layout")
}

func convert(rows []rawRow, opts Options) (*Dataset, error) {
	type parsed struct {
		Point
		missing bool
		rawRow
	}

	out := make([]parsed, len(rows))
	for i, r := range rows {
		date, err := parseDate(r.date, opts.DateLayout)
		if err != nil {
			return nil, &ParseError{Row: r.row, Column: opts.DateColumn, Value: r.date, Err: err}
		}
		out[i] = parsed{Point: Point{Date: Normalize(date)}, rawRow: r}

		if isMissing(r.value) {
			if !opts.FillMissing {
				return nil, &ParseError{Row: r.row, Column: opts.ValueColumn, Value: r.value, Err: errors.New("missing count")}
			}
			out[i].missing = true
			continue
		}

		v, err := strconv.ParseFloat(r.value, 64)
		if err != nil {
			return nil, &ParseError{Row: r.row, Column: opts.ValueColumn, Value: r.value, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, &ParseError{Row: r.row, Column: opts.ValueColumn, Value: r.value, Err: errors.New("count must be a finite non-negative number")}
		}
		out[i].Value = v
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	points := make([]Point, len(out))
	for i, p := range out {
		if p.missing {
			if i == 0 {
				return nil, &ParseError{Row: p.row, Column: opts.ValueColumn, Value: p.value, Err: errors.New("missing count with no prior value to carry forward")}
			}
			p.Value = points[i-1].Value
		}
		points[i] = p.Point
	}

	return &Dataset{points: points}, nil
}
