package models

import (
	"bytes"
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

func artifact(o Order, so SeasonalOrder) *Artifact {
	return &Artifact{
		Version:       ArtifactVersion,
		Order:         o,
		SeasonalOrder: so,
		LastDate:      t0.AddDate(0, 0, 59),
		Sigma2:        1,
	}
}

func TestArtifact_Predict(t *testing.T) {
	week := []float64{10, 12, 11, 13, 12, 6, 5}

	tests := []struct {
		name    string
		build   func() *Artifact
		horizon int
		want    []float64
	}{
		{
			name: "random walk repeats last value",
			build: func() *Artifact {
				a := artifact(Order{D: 1}, SeasonalOrder{})
				a.EndogTail = []float64{42}
				return a
			},
			horizon: 3,
			want:    []float64{42, 42, 42},
		},
		{
			name: "seasonal random walk repeats last week",
			build: func() *Artifact {
				a := artifact(Order{}, SeasonalOrder{D: 1, S: 7})
				a.EndogTail = slices.Clone(week)
				return a
			},
			horizon: 10,
			want:    append(slices.Clone(week), week[:3]...),
		},
		{
			name: "second difference extrapolates linearly",
			build: func() *Artifact {
				a := artifact(Order{D: 2}, SeasonalOrder{})
				a.EndogTail = []float64{10, 13}
				return a
			},
			horizon: 3,
			want:    []float64{16, 19, 22},
		},
		{
			name: "ar(1) decays to the mean",
			build: func() *Artifact {
				a := artifact(Order{P: 1}, SeasonalOrder{})
				a.ARParams = []float64{0.5}
				a.Mean = 10
				a.DiffTail = []float64{2}
				return a
			},
			horizon: 3,
			want:    []float64{11, 10.5, 10.25},
		},
		{
			name: "ma(1) only affects the first step",
			build: func() *Artifact {
				a := artifact(Order{Q: 1}, SeasonalOrder{})
				a.MAParams = []float64{0.4}
				a.ResidTail = []float64{5}
				return a
			},
			horizon: 3,
			want:    []float64{2, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build().Predict(tt.horizon)
			if err != nil {
				t.Fatalf("Predict() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !almostEqual(got[i], tt.want[i], 1e-9) {
					t.Errorf("step %d = %v, want %v", i+1, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestArtifact_Forecast_DatesAndRounding(t *testing.T) {
	tests := []struct {
		last float64
		want int
	}{
		{2.5, 2},
		{3.5, 4},
		{7.4, 7},
		{-1.5, -2},
	}

	for _, tt := range tests {
		a := artifact(Order{D: 1}, SeasonalOrder{})
		a.EndogTail = []float64{tt.last}

		f, err := a.Forecast(2)
		if err != nil {
			t.Fatalf("Forecast() error = %v", err)
		}
		if f.Points[0].Count != tt.want {
			t.Errorf("round(%v) = %d, want %d", tt.last, f.Points[0].Count, tt.want)
		}
		if f.Mean[0] != tt.last {
			t.Errorf("Mean[0] = %v, want %v", f.Mean[0], tt.last)
		}
		if !f.Points[0].Date.Equal(t0.AddDate(0, 0, 60)) || !f.Points[1].Date.Equal(t0.AddDate(0, 0, 61)) {
			t.Errorf("dates = %v, %v", f.Points[0].Date, f.Points[1].Date)
		}
		if f.Model != "sarima(0,1,0)" {
			t.Errorf("Model = %q", f.Model)
		}
	}
}

func TestArtifact_Forecast_InvalidHorizon(t *testing.T) {
	a := artifact(Order{D: 1}, SeasonalOrder{})
	a.EndogTail = []float64{1}

	for _, h := range []int{0, -3} {
		if _, err := a.Forecast(h); !errors.Is(err, ErrInvalidHorizon) {
			t.Errorf("Forecast(%d) error = %v, want ErrInvalidHorizon", h, err)
		}
	}
}

func TestArtifact_Forecast_Repeatable(t *testing.T) {
	ds := datasetFrom(t, syntheticWeekly(60, 11))
	a, err := NewTrainer(DefaultOrder, DefaultSeasonalOrder, discardLogger()).Fit(context.Background(), ds)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	before := slices.Clone(a.ResidTail)

	f1, err := a.Forecast(DefaultHorizon)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	f2, _ := a.Forecast(DefaultHorizon)

	if !slices.Equal(f1.Counts(), f2.Counts()) {
		t.Errorf("forecasts differ: %v vs %v", f1.Counts(), f2.Counts())
	}
	if !slices.Equal(before, a.ResidTail) {
		t.Error("Forecast modified the artifact")
	}
}

func TestTrainer_Fit_RandomWalkForecastsLastValue(t *testing.T) {
	values := syntheticWeekly(30, 5)
	ds := datasetFrom(t, values)

	a, err := NewTrainer(Order{D: 1}, SeasonalOrder{}, discardLogger()).Fit(context.Background(), ds)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	f, err := a.Forecast(5)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	last := int(values[len(values)-1])
	for i, c := range f.Counts() {
		if c != last {
			t.Errorf("count[%d] = %d, want %d", i, c, last)
		}
	}
}

func TestForecast_WriteCSV(t *testing.T) {
	a := artifact(Order{D: 1}, SeasonalOrder{})
	a.EndogTail = []float64{7}
	f, err := a.Forecast(2)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	var buf bytes.Buffer
	if err := f.WriteCSV(&buf, "n_tickets"); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := ",n_tickets\n2024-03-01,7\n2024-03-02,7\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestArtifact_Validate(t *testing.T) {
	valid := func() *Artifact {
		a := artifact(DefaultOrder, DefaultSeasonalOrder)
		a.ARParams = []float64{0.1}
		a.MAParams = []float64{0.2}
		a.SeasonalARParams = []float64{0.3}
		a.SeasonalMAParams = []float64{0.4}
		a.EndogTail = make([]float64, 8)
		a.DiffTail = make([]float64, 8)
		a.ResidTail = make([]float64, 8)
		return a
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on a consistent artifact = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"wrong version", func(a *Artifact) { a.Version = 2 }},
		{"missing last date", func(a *Artifact) { a.LastDate = time.Time{} }},
		{"ar length", func(a *Artifact) { a.ARParams = nil }},
		{"short endog tail", func(a *Artifact) { a.EndogTail = a.EndogTail[:7] }},
		{"resid tail length", func(a *Artifact) { a.ResidTail = append(a.ResidTail, 0) }},
		{"non-finite diff tail", func(a *Artifact) { a.DiffTail[3] = math.NaN() }},
		{"negative sigma2", func(a *Artifact) { a.Sigma2 = -1 }},
		{"bad order", func(a *Artifact) { a.SeasonalOrder.S = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid()
			tt.mutate(a)
			if err := a.Validate(); !errors.Is(err, ErrInvalidArtifact) {
				t.Errorf("Validate() error = %v, want ErrInvalidArtifact", err)
			}
		})
	}
}
