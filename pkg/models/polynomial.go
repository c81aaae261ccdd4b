package models

import "math"

// Lag polynomials are stored as coefficient slices indexed by lag:
// c[0] is the coefficient of B^0, c[k] the coefficient of B^k.

// polyMul multiplies two lag polynomials.
func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

// lagPoly builds 1 + sign*(c[0]B^step + c[1]B^(2*step) + ...).
func lagPoly(coeffs []float64, step int, sign float64) []float64 {
	out := make([]float64, len(coeffs)*step+1)
	out[0] = 1
	for i, c := range coeffs {
		out[(i+1)*step] = sign * c
	}
	return out
}

// expandAR returns the predictor coefficients of φ(B)Φ(B^s), so that the AR
// part of w_t is Σ ar[k-1] w_{t-k}.
func expandAR(ar, sar []float64, s int) []float64 {
	poly := polyMul(lagPoly(ar, 1, -1), lagPoly(sar, max(s, 1), -1))
	out := make([]float64, len(poly)-1)
	for k := 1; k < len(poly); k++ {
		out[k-1] = -poly[k]
	}
	return out
}

// expandMA returns the coefficients of θ(B)Θ(B^s) beyond lag zero, so that
// the MA part of w_t is Σ ma[k-1] e_{t-k}.
func expandMA(ma, sma []float64, s int) []float64 {
	poly := polyMul(lagPoly(ma, 1, 1), lagPoly(sma, max(s, 1), 1))
	return poly[1:]
}

// differencingPoly returns (1-B)^d (1-B^s)^D.
func differencingPoly(d, sd, s int) []float64 {
	poly := []float64{1}
	for range d {
		poly = polyMul(poly, []float64{1, -1})
	}
	for range sd {
		seasonal := make([]float64, s+1)
		seasonal[0], seasonal[s] = 1, -1
		poly = polyMul(poly, seasonal)
	}
	return poly
}

// difference applies the differencing polynomial to y. The result has
// len(y) - (len(poly)-1) observations.
func difference(y, poly []float64) []float64 {
	k := len(poly) - 1
	if len(y) <= k {
		return nil
	}
	out := make([]float64, len(y)-k)
	for t := k; t < len(y); t++ {
		var v float64
		for j, c := range poly {
			v += c * y[t-j]
		}
		out[t-k] = v
	}
	return out
}

// constrainStationary maps unconstrained reals to the coefficients of a
// stationary AR polynomial 1 - Σ φ_j B^j.
//
// Each input is first squashed to a partial autocorrelation in (-1, 1), then
// the Durbin-Levinson recursion turns the partial autocorrelations into AR
// coefficients (Monahan, 1984).
func constrainStationary(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	prev := make([]float64, 0, n)
	for k := range n {
		r := x[k] / math.Sqrt(1+x[k]*x[k])
		cur := make([]float64, k+1)
		for j := range k {
			cur[j] = prev[j] - r*prev[k-1-j]
		}
		cur[k] = r
		prev = cur
	}
	return prev
}

// unconstrainStationary inverts constrainStationary. It reports false when
// phi is not stationary and so has no unconstrained preimage.
func unconstrainStationary(phi []float64) ([]float64, bool) {
	n := len(phi)
	if n == 0 {
		return nil, true
	}

	out := make([]float64, n)
	cur := make([]float64, n)
	copy(cur, phi)
	for k := n - 1; k >= 0; k-- {
		r := cur[k]
		if r*r >= 1 {
			return nil, false
		}
		out[k] = r / math.Sqrt(1-r*r)
		if k == 0 {
			break
		}
		prev := make([]float64, k)
		den := 1 - r*r
		for j := range k {
			prev[j] = (cur[j] + r*cur[k-1-j]) / den
		}
		cur = prev
	}
	return out, true
}

// constrainInvertible maps unconstrained reals to the coefficients of an
// invertible MA polynomial 1 + Σ θ_j B^j.
func constrainInvertible(x []float64) []float64 {
	phi := constrainStationary(x)
	for i := range phi {
		phi[i] = -phi[i]
	}
	return phi
}
