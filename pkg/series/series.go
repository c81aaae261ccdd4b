// Package series provides the daily count time series consumed by the
// forecasting pipeline, along with readers that validate input tables once at
// the boundary.
//
// A Dataset is an ordered, immutable sequence of (date, value) points. Dates
// are normalized to UTC midnight so that daily arithmetic is exact. Datasets
// are produced by Load / LoadFile and never modified afterwards; accessors
// return copies.
package series

import (
	"errors"
	"sort"
	"time"
)

// Day is one calendar day.
const Day = 24 * time.Hour

// Point is a single daily observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Dataset is an ordered daily count series.
type Dataset struct {
	points []Point
}

// New builds a Dataset from points. Points are copied, dates are truncated to
// UTC midnight and the result is stable-sorted ascending by date.
func New(points []Point) (*Dataset, error) {
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}

	sorted := make([]Point, len(points))
	for i, p := range points {
		if p.Value < 0 {
			return nil, errors.New("series values must be non-negative counts")
		}
		sorted[i] = Point{Date: Normalize(p.Date), Value: p.Value}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	return &Dataset{points: sorted}, nil
}

// Normalize truncates t to midnight UTC of its calendar day.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of observations.
func (d *Dataset) Len() int {
	return len(d.points)
}

// At returns the i-th observation.
func (d *Dataset) At(i int) Point {
	return d.points[i]
}

// Points returns a copy of all observations.
func (d *Dataset) Points() []Point {
	out := make([]Point, len(d.points))
	copy(out, d.points)
	return out
}

// Values returns a copy of the observation values in date order.
func (d *Dataset) Values() []float64 {
	out := make([]float64, len(d.points))
	for i, p := range d.points {
		out[i] = p.Value
	}
	return out
}

// FirstDate returns the earliest date in the series.
func (d *Dataset) FirstDate() time.Time {
	return d.points[0].Date
}

// LastDate returns the latest date in the series.
func (d *Dataset) LastDate() time.Time {
	return d.points[len(d.points)-1].Date
}

// IsDailyContiguous reports whether every consecutive pair of dates is
// exactly one day apart, i.e. dates are unique and have no gaps.
func (d *Dataset) IsDailyContiguous() bool {
	for i := 1; i < len(d.points); i++ {
		if !d.points[i].Date.Equal(d.points[i-1].Date.Add(Day)) {
			return false
		}
	}
	return true
}
