package models

import (
	"fmt"
	"math"
	"time"
)

// ArtifactVersion identifies the layout of Artifact. It is bumped whenever a
// field changes meaning; artifacts of another version are not decoded.
const ArtifactVersion = 1

// Artifact is a fitted SARIMA model: its structural orders, estimated
// coefficients, fit statistics and the trailing state forecasts start from.
//
// An Artifact is plain data and is never modified after Fit returns it.
type Artifact struct {
	Version       int           `json:"version"`
	Order         Order         `json:"order"`
	SeasonalOrder SeasonalOrder `json:"seasonal_order"`

	ARParams         []float64 `json:"ar"`
	MAParams         []float64 `json:"ma"`
	SeasonalARParams []float64 `json:"seasonal_ar"`
	SeasonalMAParams []float64 `json:"seasonal_ma"`

	// Mean is subtracted before fitting when the model has no differencing.
	Mean float64 `json:"mean"`
	// Sigma2 is the innovation (residual) variance.
	Sigma2 float64 `json:"sigma2"`

	LogLikelihood float64 `json:"log_likelihood"`
	AIC           float64 `json:"aic"`
	BIC           float64 `json:"bic"`
	NObs          int     `json:"nobs"`
	Iterations    int     `json:"iterations"`

	// LastDate is the final training date; forecasts start the day after.
	LastDate time.Time `json:"last_date"`

	// EndogTail holds the last d+D*s observations, DiffTail the last p+P*s
	// differenced (and centered) observations, ResidTail the last q+Q*s
	// residuals.
	EndogTail []float64 `json:"endog_tail"`
	DiffTail  []float64 `json:"diff_tail"`
	ResidTail []float64 `json:"resid_tail"`
}

// Name returns the model identifier, e.g. "sarima(1,1,1)(1,1,1,7)".
func (a *Artifact) Name() string {
	return modelName(a.Order, a.SeasonalOrder)
}

// Validate checks that the artifact is internally consistent: every slice
// has the length its orders imply and every number is finite.
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidArtifact, a.Version, ArtifactVersion)
	}
	if err := validateOrders(a.Order, a.SeasonalOrder); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if a.LastDate.IsZero() {
		return fmt.Errorf("%w: last date is not set", ErrInvalidArtifact)
	}

	arLags, maLags, diffLags := lags(a.Order, a.SeasonalOrder)
	checks := []struct {
		name   string
		values []float64
		want   int
	}{
		{"ar", a.ARParams, a.Order.P},
		{"ma", a.MAParams, a.Order.Q},
		{"seasonal_ar", a.SeasonalARParams, a.SeasonalOrder.P},
		{"seasonal_ma", a.SeasonalMAParams, a.SeasonalOrder.Q},
		{"endog_tail", a.EndogTail, diffLags},
		{"diff_tail", a.DiffTail, arLags},
		{"resid_tail", a.ResidTail, maLags},
	}
	for _, c := range checks {
		if len(c.values) != c.want {
			return fmt.Errorf("%w: %s has %d values, want %d", ErrInvalidArtifact, c.name, len(c.values), c.want)
		}
		for _, v := range c.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s contains a non-finite value", ErrInvalidArtifact, c.name)
			}
		}
	}

	if math.IsNaN(a.Mean) || math.IsInf(a.Mean, 0) || math.IsNaN(a.Sigma2) || a.Sigma2 < 0 {
		return fmt.Errorf("%w: mean or sigma2 out of range", ErrInvalidArtifact)
	}

	return nil
}
