package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// FillGaps returns a daily-contiguous copy of d. Missing calendar days are
// inserted with the previous day's count; repeated dates keep the last
// observation for that day.
func FillGaps(d *Dataset) *Dataset {
	if d.Len() == 0 {
		return &Dataset{}
	}

	out := make([]Point, 0, d.Len())
	for _, p := range d.points {
		if n := len(out); n > 0 {
			last := out[n-1]
			if p.Date.Equal(last.Date) {
				out[n-1] = p
				continue
			}
			for next := last.Date.Add(Day); next.Before(p.Date); next = next.Add(Day) {
				out = append(out, Point{Date: next, Value: last.Value})
			}
		}
		out = append(out, p)
	}

	return &Dataset{points: out}
}

// WriteCSV writes d as a two-column table with a header row.
func WriteCSV(w io.Writer, d *Dataset, dateColumn, valueColumn string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{dateColumn, valueColumn}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range d.points {
		record := []string{
			p.Date.Format("2006-01-02"),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
