package models

import "fmt"

// Order is the non-seasonal ARIMA order (p, d, q).
type Order struct {
	P int `json:"p"` // AutoRegressive order
	D int `json:"d"` // Differencing order
	Q int `json:"q"` // Moving Average order
}

// SeasonalOrder is the seasonal order (P, D, Q, s).
type SeasonalOrder struct {
	P int `json:"P"` // Seasonal AutoRegressive order
	D int `json:"D"` // Seasonal Differencing order
	Q int `json:"Q"` // Seasonal Moving Average order
	S int `json:"s"` // Seasonal period in observations (7 for weekly seasonality in daily data)
}

// DefaultOrder is SARIMA's (1,1,1) non-seasonal order.
var DefaultOrder = Order{P: 1, D: 1, Q: 1}

// DefaultSeasonalOrder is (1,1,1,7): weekly seasonality for daily data.
var DefaultSeasonalOrder = SeasonalOrder{P: 1, D: 1, Q: 1, S: 7}

func (s SeasonalOrder) active() bool {
	return s.P > 0 || s.D > 0 || s.Q > 0
}

// validateOrders checks that orders are non-negative and that a seasonal
// component, if any, has a period of at least two observations.
func validateOrders(o Order, s SeasonalOrder) error {
	if o.P < 0 || o.D < 0 || o.Q < 0 {
		return fmt.Errorf("%w: p, d and q must be >= 0, got (%d,%d,%d)", ErrInvalidOrder, o.P, o.D, o.Q)
	}
	if s.P < 0 || s.D < 0 || s.Q < 0 || s.S < 0 {
		return fmt.Errorf("%w: P, D, Q and s must be >= 0, got (%d,%d,%d,%d)", ErrInvalidOrder, s.P, s.D, s.Q, s.S)
	}
	if s.active() && s.S < 2 {
		return fmt.Errorf("%w: seasonal period must be >= 2 when using seasonal components, got %d", ErrInvalidOrder, s.S)
	}
	return nil
}

// modelName renders the orders the way they are usually written,
// e.g. "sarima(1,1,1)(1,1,1,7)".
func modelName(o Order, s SeasonalOrder) string {
	if !s.active() {
		return fmt.Sprintf("sarima(%d,%d,%d)", o.P, o.D, o.Q)
	}
	return fmt.Sprintf("sarima(%d,%d,%d)(%d,%d,%d,%d)", o.P, o.D, o.Q, s.P, s.D, s.Q, s.S)
}

// lags returns the number of lags spanned by the expanded AR, MA and
// differencing polynomials.
func lags(o Order, s SeasonalOrder) (ar, ma, diff int) {
	period := s.S
	if !s.active() {
		period = 0
	}
	return o.P + s.P*period, o.Q + s.Q*period, o.D + s.D*period
}
