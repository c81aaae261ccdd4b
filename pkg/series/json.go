package series

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// readJSON reads an array of records, e.g.
//
//	[{"Date": "2024-01-01", "Tickets": 10}, {"Date": "2024-01-02", "Tickets": 12}]
//
// When opts.RecordsPath is set the array is looked up with that gjson path
// ("data.rows") instead of being the document root. Every record must carry
// both columns; a null count is treated as missing.
func readJSON(r io.Reader, opts Options) ([]rawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return nil, &FormatError{Reason: "invalid JSON document"}
	}

	root := gjson.ParseBytes(data)
	if opts.RecordsPath != "" {
		root = root.Get(opts.RecordsPath)
		if !root.Exists() {
			return nil, &FormatError{Reason: fmt.Sprintf("records path %q not found", opts.RecordsPath)}
		}
	}
	if !root.IsArray() {
		return nil, &FormatError{Reason: "expected a JSON array of records"}
	}

	records := root.Array()
	rows := make([]rawRow, 0, len(records))
	for i, rec := range records {
		if !rec.IsObject() {
			return nil, &FormatError{Reason: fmt.Sprintf("record %d is not an object", i+1)}
		}

		fields := rec.Map()
		date, ok := fields[opts.DateColumn]
		if !ok {
			return nil, &FormatError{Column: opts.DateColumn, Reason: "date column not found"}
		}
		value, ok := fields[opts.ValueColumn]
		if !ok {
			return nil, &FormatError{Column: opts.ValueColumn, Reason: "count column not found"}
		}

		rows = append(rows, rawRow{
			row:   i + 1,
			date:  date.String(),
			value: cellString(value),
		})
	}

	return rows, nil
}

func cellString(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return v.Raw
	default:
		return v.String()
	}
}
