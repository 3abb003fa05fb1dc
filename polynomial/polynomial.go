// Package polynomial evaluates polynomials and finds their complex
// roots via Durand-Kerner iteration.
//
// Coefficients are a column vector c[0..d], interpreted as
// p(t) = sum(c[i] * t^i).
package polynomial

import (
	"errors"
	"math"
)

// ErrIllDefined is returned when the root finder cannot converge
// within the iteration cap, or when the polynomial is identically zero.
var ErrIllDefined = errors.New("polynomial: ill-defined (no convergence or identically zero)")

const (
	rootEpsilon  = 1e-6
	maxIterCount = 200
)

// Complex is a plain two-component complex value; spec.md notes a
// library type isn't needed here.
type Complex struct {
	Re, Im float64
}

func (a Complex) add(b Complex) Complex { return Complex{a.Re + b.Re, a.Im + b.Im} }
func (a Complex) sub(b Complex) Complex { return Complex{a.Re - b.Re, a.Im - b.Im} }
func (a Complex) mul(b Complex) Complex {
	return Complex{a.Re*b.Re - a.Im*b.Im, a.Re*b.Im + a.Im*b.Re}
}
func (a Complex) div(b Complex) Complex {
	d := b.Re*b.Re + b.Im*b.Im
	return Complex{(a.Re*b.Re + a.Im*b.Im) / d, (a.Im*b.Re - a.Re*b.Im) / d}
}
func (a Complex) abs1() float64 { return math.Abs(a.Re) + math.Abs(a.Im) }
func (a Complex) isZero() bool  { return a.Re == 0 && a.Im == 0 }

// Value evaluates p(t) by accumulating a running power of t.
func Value(c []float64, t float64) float64 {
	sum := 0.0
	pow := 1.0
	for _, ci := range c {
		sum += ci * pow
		pow *= t
	}
	return sum
}

// Antiderivative returns the coefficients of the antiderivative with
// constant of integration zero: F[0] = 0 and F[i+1] = c[i] / (i+1).
func Antiderivative(c []float64) []float64 {
	out := make([]float64, len(c)+1)
	out[0] = 0
	for i, ci := range c {
		out[i+1] = ci / float64(i+1)
	}
	return out
}

// Derivative returns c'[i-1] = i*c[i] for i=1..d. Degree-0 polynomials
// yield the zero polynomial of length 1.
func Derivative(c []float64) []float64 {
	if len(c) <= 1 {
		return []float64{0}
	}
	out := make([]float64, len(c)-1)
	for i := 1; i < len(c); i++ {
		out[i-1] = float64(i) * c[i]
	}
	return out
}

// Roots finds all d roots of the polynomial with coefficients c via
// Durand-Kerner iteration, where d is the degree left after trailing
// zero coefficients are trimmed.
func Roots(c []float64) ([]Complex, error) {
	reduced := trimTrailingZeros(c)
	d := len(reduced) - 1
	if d <= 0 {
		if d == 0 && reduced[0] != 0 {
			return nil, nil
		}
		return nil, ErrIllDefined
	}

	// Count leading zero coefficients (roots at zero).
	m := 0
	for m < d && reduced[m] == 0 {
		m++
	}
	roots := make([]Complex, 0, d)
	for i := 0; i < m; i++ {
		roots = append(roots, Complex{})
	}
	remaining := d - m
	if remaining == 0 {
		return roots, nil
	}

	active := reduced[m:]
	var activeRoots []Complex
	var err error
	switch remaining {
	case 1:
		activeRoots = []Complex{{Re: -active[0] / active[1]}}
	case 2:
		activeRoots = solveQuadratic(active[0], active[1], active[2])
	default:
		activeRoots, err = durandKerner(active, remaining)
		if err != nil {
			return nil, err
		}
	}
	return append(roots, activeRoots...), nil
}

func trimTrailingZeros(c []float64) []float64 {
	end := len(c)
	for end > 1 && c[end-1] == 0 {
		end--
	}
	return c[:end]
}

func solveQuadratic(c0, c1, c2 float64) []Complex {
	delta := c1*c1 - 4*c2*c0
	if delta > 0 {
		sign := 1.0
		if c1 < 0 {
			sign = -1
		}
		q := -c1 - sign*math.Sqrt(delta)
		r1 := q / (2 * c2)
		var r2 float64
		if q != 0 {
			r2 = 2 * c0 / q
		} else {
			r2 = r1
		}
		return []Complex{{Re: r1}, {Re: r2}}
	}
	re := -c1 / (2 * c2)
	im := math.Sqrt(-delta) / (2 * c2)
	return []Complex{{Re: re, Im: im}, {Re: re, Im: -im}}
}

// durandKerner iterates the Weierstrass/Durand-Kerner fixed point on
// active, the degree-remaining polynomial obtained after removing
// reduced's leading zero-roots. Every evaluation and update must stay
// within this deflated polynomial: evaluating the full (un-deflated)
// coefficients here would test the iterate against extra roots at
// zero that were already factored out, and the iteration would never
// converge.
func durandKerner(active []float64, remaining int) ([]Complex, error) {
	cd := active[len(active)-1]

	upper := 1.0
	for i := 0; i < len(active); i++ {
		if v := math.Abs(active[i] / cd); v > upper {
			upper = v
		}
	}
	lowerDen := 1.0
	for i := 0; i < len(active)-1; i++ {
		if v := math.Abs(active[i+1] / active[0]); v > lowerDen {
			lowerDen = v
		}
	}
	lower := 1.0 / lowerDen

	z := placeInitialEstimates(active, remaining, lower, upper)

	for iter := 0; iter < maxIterCount; iter++ {
		maxResidual := 0.0
		next := make([]Complex, remaining)
		copy(next, z)
		for i := 0; i < remaining; i++ {
			denom := Complex{Re: cd}
			for j := 0; j < remaining; j++ {
				if j == i {
					continue
				}
				denom = denom.mul(z[i].sub(z[j]))
			}
			p := evalComplex(active, z[i])
			maxResidual = math.Max(maxResidual, p.abs1())
			if denom.isZero() {
				continue
			}
			next[i] = z[i].sub(p.div(denom))
		}
		z = next
		if maxResidual < rootEpsilon {
			return z, nil
		}
	}
	return nil, ErrIllDefined
}

func placeInitialEstimates(active []float64, remaining int, lower, upper float64) []Complex {
	r := lower
	for {
		z := make([]Complex, remaining)
		for i := 0; i < remaining; i++ {
			theta := 2 * math.Pi * (float64(i) + 0.25) / float64(remaining)
			z[i] = Complex{Re: r * math.Cos(theta), Im: r * math.Sin(theta)}
		}
		if r > upper {
			return z
		}
		if !estimatesExplode(active, z, r) {
			return z
		}
		r *= 2
	}
}

// estimatesExplode checks whether the first Durand-Kerner update from
// these estimates would move any root by more than r^2.
func estimatesExplode(active []float64, z []Complex, r float64) bool {
	cd := active[len(active)-1]
	limit := r * r
	for i := range z {
		denom := Complex{Re: cd}
		for j := range z {
			if j == i {
				continue
			}
			denom = denom.mul(z[i].sub(z[j]))
		}
		if denom.isZero() {
			continue
		}
		p := evalComplex(active, z[i])
		update := p.div(denom)
		if update.abs1() > limit {
			return true
		}
	}
	return false
}

func evalComplex(c []float64, z Complex) Complex {
	sum := Complex{}
	pow := Complex{Re: 1}
	for _, ci := range c {
		sum = sum.add(Complex{Re: ci * pow.Re, Im: ci * pow.Im})
		pow = pow.mul(z)
	}
	return sum
}
