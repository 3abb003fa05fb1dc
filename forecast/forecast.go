// Package forecast exposes the two public entry points that drive
// the forecasting engine: Forecast and TimeToThreshold. Both fit a
// curve to a time series by least squares (package regression) and
// evaluate it over a requested horizon or against a threshold.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/terrydash/zbxcore/polynomial"
	"github.com/terrydash/zbxcore/regression"
)

// ErrInvalidParam is returned for an unrecognized fit/mode code or an
// invalid threshold sign.
var ErrInvalidParam = regression.ErrInvalidParam

// ErrSampleMismatch is returned when len(t) != len(x). Not named in
// spec.md (whose C signature carries an explicit n), but required for
// a safe Go signature.
var ErrSampleMismatch = errors.New("forecast: len(t) != len(x)")

// Sentinels per spec.md §7.
const (
	ErrorSentinel  = -1.0
	sentinelBound  = 1e12 - 1e-4
	PosInfSentinel = sentinelBound
	NegInfSentinel = -sentinelBound
)

// Mode is the requested aggregation over the forecast horizon.
type Mode int

const (
	Value Mode = iota
	Max
	Min
	Delta
	Avg
)

// ParseMode parses the mode code. Empty input is Value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "value":
		return Value, nil
	case "max":
		return Max, nil
	case "min":
		return Min, nil
	case "delta":
		return Delta, nil
	case "avg":
		return Avg, nil
	default:
		return 0, fmt.Errorf("mode code %q: %w", s, ErrInvalidParam)
	}
}

// Forecast fits (t[i], x[i]) and projects the requested mode at
// now+horizon. Results are clamped per spec.md §7 so NaN/overflow
// never reach the caller.
func Forecast(t, x []float64, now, horizon float64, fitStr, modeStr string) (float64, error) {
	if len(t) != len(x) {
		return 0, ErrSampleMismatch
	}
	fit, err := regression.ParseFitKind(fitStr)
	if err != nil {
		return 0, err
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return 0, err
	}

	if len(x) == 1 {
		if mode == Delta {
			return 0, nil
		}
		return clamp(x[0]), nil
	}

	c, err := regression.Solve(fit, t, x)
	if err != nil {
		return 0, err
	}

	result, err := dispatch(fit, c, now, horizon, mode)
	if err != nil {
		return 0, err
	}
	return clamp(result), nil
}

func dispatch(fit regression.FitKind, c []float64, now, horizon float64, mode Mode) (float64, error) {
	eval := evaluator(fit, c)

	if mode == Value {
		return eval(now + horizon), nil
	}
	if horizon == 0 {
		if mode == Delta {
			return 0, nil
		}
		return eval(now), nil
	}

	if fit.Kind == regression.Polynomial {
		return dispatchPolynomial(c, now, horizon, mode)
	}
	return dispatchMonotone(fit, c, now, horizon, mode)
}

func evaluator(fit regression.FitKind, c []float64) func(t float64) float64 {
	switch fit.Kind {
	case regression.Exponential:
		return func(t float64) float64 { return math.Exp(polynomial.Value(c, t)) }
	case regression.Logarithmic:
		return func(t float64) float64 { return c[0] + c[1]*math.Log(t) }
	case regression.Power:
		return func(t float64) float64 { return math.Exp(c[0] + c[1]*math.Log(t)) }
	default:
		return func(t float64) float64 { return polynomial.Value(c, t) }
	}
}

func dispatchMonotone(fit regression.FitKind, c []float64, now, horizon float64, mode Mode) (float64, error) {
	eval := evaluator(fit, c)
	l := eval(now)
	r := eval(now + horizon)

	switch mode {
	case Max:
		return math.Max(l, r), nil
	case Min:
		return math.Min(l, r), nil
	case Delta:
		return math.Abs(r - l), nil
	case Avg:
		return monotoneAvg(fit, c, now, horizon, l, r), nil
	default:
		return 0, fmt.Errorf("mode: %w", ErrInvalidParam)
	}
}

func monotoneAvg(fit regression.FitKind, c []float64, now, horizon, l, r float64) float64 {
	switch fit.Kind {
	case regression.Linear:
		return (l + r) / 2
	case regression.Exponential:
		return (r - l) / (horizon * c[1])
	case regression.Logarithmic:
		return r + c[1]*(math.Log(1+horizon/now)*now/horizon-1)
	case regression.Power:
		if c[1] != -1 {
			return (r*(now+horizon) - l*now) / (horizon * (c[1] + 1))
		}
		return math.Exp(c[0]) * math.Log(1+horizon/now) / horizon
	default:
		return (l + r) / 2
	}
}

func dispatchPolynomial(c []float64, now, horizon float64, mode Mode) (float64, error) {
	if mode == Avg {
		anti := polynomial.Antiderivative(c)
		return (polynomial.Value(anti, now+horizon) - polynomial.Value(anti, now)) / horizon, nil
	}

	candidates := []float64{polynomial.Value(c, now), polynomial.Value(c, now+horizon)}

	deriv := polynomial.Derivative(c)
	lo, hi := now, now+horizon
	if lo > hi {
		lo, hi = hi, lo
	}
	if roots, err := polynomial.Roots(deriv); err == nil {
		for _, r := range roots {
			if r.Re >= lo && r.Re <= hi {
				candidates = append(candidates, polynomial.Value(c, r.Re))
			}
		}
	}

	switch mode {
	case Max:
		m := candidates[0]
		for _, v := range candidates[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	case Min:
		m := candidates[0]
		for _, v := range candidates[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	case Delta:
		mx, mn := candidates[0], candidates[0]
		for _, v := range candidates[1:] {
			mx = math.Max(mx, v)
			mn = math.Min(mn, v)
		}
		return mx - mn, nil
	default:
		return 0, fmt.Errorf("mode: %w", ErrInvalidParam)
	}
}

// TimeToThreshold fits (t[i], x[i]) and finds the smallest now-relative
// offset at which the curve reaches threshold.
func TimeToThreshold(t, x []float64, now, threshold float64, fitStr string) (float64, error) {
	if len(t) != len(x) {
		return 0, ErrSampleMismatch
	}
	fit, err := regression.ParseFitKind(fitStr)
	if err != nil {
		return 0, err
	}
	if (fit.Kind == regression.Exponential || fit.Kind == regression.Power) && threshold <= 0 {
		return 0, fmt.Errorf("threshold %v requires a positive curve: %w", threshold, ErrInvalidParam)
	}

	if len(x) == 1 {
		if x[0] == threshold {
			return 0, nil
		}
		return PosInfSentinel, nil
	}

	c, err := regression.Solve(fit, t, x)
	if err != nil {
		return 0, err
	}

	eval := evaluator(fit, c)
	if eval(now) == threshold {
		return 0, nil
	}

	result, err := inverse(fit, c, now, threshold)
	if err != nil {
		return 0, err
	}
	return clampTTT(result), nil
}

func inverse(fit regression.FitKind, c []float64, now, threshold float64) (float64, error) {
	switch fit.Kind {
	case regression.Linear:
		return (threshold-c[0])/c[1] - now, nil
	case regression.Exponential:
		return (math.Log(threshold)-c[0])/c[1] - now, nil
	case regression.Logarithmic:
		return math.Exp((threshold-c[0])/c[1]) - now, nil
	case regression.Power:
		return math.Exp((math.Log(threshold)-c[0])/c[1]) - now, nil
	case regression.Polynomial:
		return polynomialTimeToThreshold(c, now, threshold)
	default:
		return 0, fmt.Errorf("fit: %w", ErrInvalidParam)
	}
}

func polynomialTimeToThreshold(c []float64, now, threshold float64) (float64, error) {
	shifted := make([]float64, len(c))
	copy(shifted, c)
	shifted[0] -= threshold

	roots, err := polynomial.Roots(shifted)
	if err != nil {
		return 0, err
	}

	best := math.Inf(1)
	found := false
	for _, r := range roots {
		if r.Re <= now {
			continue
		}
		residual := math.Abs(polynomial.Value(c, r.Re) - threshold)
		if residual < 1e-6 && r.Re < best {
			best = r.Re
			found = true
		}
	}
	if !found {
		// No qualifying root: spec.md's clamp step treats any negative
		// result as "never crosses", mapping this to +inf sentinel.
		return -1, nil
	}
	return best - now, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return ErrorSentinel
	}
	if v > sentinelBound {
		return PosInfSentinel
	}
	if v < -sentinelBound {
		return NegInfSentinel
	}
	return v
}

func clampTTT(v float64) float64 {
	if math.IsNaN(v) {
		return ErrorSentinel
	}
	if v < 0 || v > sentinelBound {
		return PosInfSentinel
	}
	return v
}
