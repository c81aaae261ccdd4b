package models

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// DefaultHorizon is the number of days forecast by default.
const DefaultHorizon = 28

// ForecastPoint is one predicted day.
type ForecastPoint struct {
	Date  time.Time
	Count int
}

// Forecast holds daily point predictions following the training series.
// Points are daily contiguous; Mean holds the unrounded predictions.
type Forecast struct {
	Model  string
	Points []ForecastPoint
	Mean   []float64
}

// Len returns the number of forecast days.
func (f Forecast) Len() int {
	return len(f.Points)
}

// Counts returns the rounded predictions in date order.
func (f Forecast) Counts() []int {
	out := make([]int, len(f.Points))
	for i, p := range f.Points {
		out[i] = p.Count
	}
	return out
}

// Forecast predicts the next horizon days after the training series.
//
// Predictions are point forecasts (future innovations set to zero) rounded
// half to even. Negative predictions are passed through as-is. The artifact
// is not modified; repeated calls return identical results.
func (a *Artifact) Forecast(horizon int) (Forecast, error) {
	mean, err := a.Predict(horizon)
	if err != nil {
		return Forecast{}, err
	}

	points := make([]ForecastPoint, horizon)
	for h, v := range mean {
		points[h] = ForecastPoint{
			Date:  a.LastDate.AddDate(0, 0, h+1),
			Count: int(math.RoundToEven(v)),
		}
	}

	return Forecast{Model: a.Name(), Points: points, Mean: mean}, nil
}

// Predict returns the unrounded point predictions for the next horizon steps.
func (a *Artifact) Predict(horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	so := a.SeasonalOrder
	ar := expandAR(a.ARParams, a.SeasonalARParams, so.S)
	ma := expandMA(a.MAParams, a.SeasonalMAParams, so.S)
	delta := differencingPoly(a.Order.D, so.D, so.S)

	w := append(make([]float64, 0, len(a.DiffTail)+horizon), a.DiffTail...)
	e := append(make([]float64, 0, len(a.ResidTail)+horizon), a.ResidTail...)
	y := append(make([]float64, 0, len(a.EndogTail)+horizon), a.EndogTail...)

	out := make([]float64, horizon)
	for h := range horizon {
		var wf float64
		for i, c := range ar {
			wf += c * w[len(w)-1-i]
		}
		for j, c := range ma {
			wf += c * e[len(e)-1-j]
		}
		w = append(w, wf)
		e = append(e, 0)

		// Undo differencing: y_t = w_t - Σ_{k>=1} δ_k y_{t-k}.
		yf := wf + a.Mean
		for k := 1; k < len(delta); k++ {
			yf -= delta[k] * y[len(y)-k]
		}
		y = append(y, yf)
		out[h] = yf
	}

	return out, nil
}

// WriteCSV writes the forecast table: an unnamed date index column followed
// by the integer count column, matching the pandas export layout.
func (f Forecast) WriteCSV(w io.Writer, column string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"", column}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range f.Points {
		if err := cw.Write([]string{p.Date.Format("2006-01-02"), strconv.Itoa(p.Count)}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
