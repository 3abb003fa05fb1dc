// Package regression assembles design/response matrices for a fit
// family and solves for coefficients by least squares.
package regression

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/terrydash/zbxcore/matrix"
)

// ErrInvalidParam is returned for an unrecognized fit code or an
// invalid polynomial degree.
var ErrInvalidParam = errors.New("regression: invalid fit parameter")

// ErrNonPositiveSample is returned when a log-based fit (Exponential,
// Power) receives a sample x[i] <= 0.
var ErrNonPositiveSample = errors.New("regression: exponential/power fits require strictly positive samples")

// Kind identifies a fit family.
type Kind int

const (
	Linear Kind = iota
	Polynomial
	Exponential
	Logarithmic
	Power
)

// FitKind is a fully-resolved fit choice: a Kind plus, for Polynomial,
// the requested degree (1..6, before sample-count clamping).
type FitKind struct {
	Kind   Kind
	Degree int // only meaningful when Kind == Polynomial
}

// ParseFitKind parses the textual fit code. Empty input is Linear.
// Polynomial codes are "polynomial" followed by a single digit 1..6.
//
// This implements the parsing intent of the source's zbx_fit_code,
// which suffers from the syntax errors noted in spec.md: the fix here
// is to match "polynomial" as a literal prefix and parse the trailing
// digit directly, never the buggy *fit/strlen-against-enum form.
func ParseFitKind(s string) (FitKind, error) {
	switch {
	case s == "" || s == "linear":
		return FitKind{Kind: Linear}, nil
	case s == "exponential":
		return FitKind{Kind: Exponential}, nil
	case s == "logarithmic":
		return FitKind{Kind: Logarithmic}, nil
	case s == "power":
		return FitKind{Kind: Power}, nil
	case strings.HasPrefix(s, "polynomial"):
		digits := s[len("polynomial"):]
		n, err := strconv.Atoi(digits)
		if err != nil || n < 1 || n > 6 {
			return FitKind{}, fmt.Errorf("fit code %q: %w", s, ErrInvalidParam)
		}
		return FitKind{Kind: Polynomial, Degree: n}, nil
	default:
		return FitKind{}, fmt.Errorf("fit code %q: %w", s, ErrInvalidParam)
	}
}

// Solve fits the chosen curve to (t[i], x[i]) pairs by least squares:
// c = (A^T A)^-1 (A^T y), built and multiplied in that order to keep
// intermediate matrices small. The returned coefficients are always
// in the "natural" space of the curve (e.g. ln x for Exponential/Power
// fits, to be undone by the caller via math.Exp where appropriate).
func Solve(fit FitKind, t, x []float64) ([]float64, error) {
	n := len(t)
	degree := fit.Degree
	if fit.Kind == Polynomial {
		degree = clampDegree(degree, n)
	}
	cols := designCols(fit, degree)

	a, err := matrix.New(n, cols)
	if err != nil {
		return nil, err
	}
	y, err := matrix.New(n, 1)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		if err := fillDesignRow(a, i, fit, degree, t[i]); err != nil {
			return nil, err
		}
		yv, err := responseValue(fit, x[i])
		if err != nil {
			return nil, err
		}
		y.Set(i, 0, yv)
	}

	at := a.Transpose()
	ata, err := matrix.Multiply(at, a)
	if err != nil {
		return nil, err
	}
	aty, err := matrix.Multiply(at, y)
	if err != nil {
		return nil, err
	}
	ataInv, err := ata.Inverse()
	if err != nil {
		return nil, err
	}
	c, err := matrix.Multiply(ataInv, aty)
	if err != nil {
		return nil, err
	}

	coeffs := make([]float64, cols)
	for i := 0; i < cols; i++ {
		coeffs[i] = c.At(i, 0)
	}
	return coeffs, nil
}

// clampDegree enforces spec.md's "degree = min(k, n-1)" rule.
func clampDegree(degree, n int) int {
	if degree > n-1 {
		degree = n - 1
	}
	if degree < 1 {
		degree = 1
	}
	return degree
}

func designCols(fit FitKind, degree int) int {
	switch fit.Kind {
	case Polynomial:
		return degree + 1
	default:
		return 2
	}
}

func fillDesignRow(a *matrix.Matrix, row int, fit FitKind, degree int, ti float64) error {
	switch fit.Kind {
	case Linear, Exponential:
		a.Set(row, 0, 1)
		a.Set(row, 1, ti)
	case Logarithmic, Power:
		a.Set(row, 0, 1)
		a.Set(row, 1, math.Log(ti))
	case Polynomial:
		pow := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(row, j, pow)
			pow *= ti
		}
	}
	return nil
}

func responseValue(fit FitKind, xi float64) (float64, error) {
	switch fit.Kind {
	case Exponential, Power:
		if xi <= 0 {
			return 0, fmt.Errorf("sample %v: %w", xi, ErrNonPositiveSample)
		}
		return math.Log(xi), nil
	default:
		return xi, nil
	}
}
