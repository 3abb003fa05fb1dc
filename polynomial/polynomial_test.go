package polynomial

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueConstant(t *testing.T) {
	assert.Equal(t, 3.0, Value([]float64{3}, 100))
}

func TestValueLinear(t *testing.T) {
	// p(t) = 1 + 2t
	assert.Equal(t, 7.0, Value([]float64{1, 2}, 3))
}

func TestDerivativeAntiderivativeRoundTrip(t *testing.T) {
	c := []float64{5, -2, 3, 0.5}
	anti := Antiderivative(c)
	back := Derivative(anti)
	require.Len(t, back, len(c))
	for i := range c {
		assert.InDelta(t, c[i], back[i], 1e-9, "round trip mismatch at %d", i)
	}
}

func TestDerivativeOfConstantIsZero(t *testing.T) {
	d := Derivative([]float64{7})
	require.Len(t, d, 1)
	assert.Zero(t, d[0])
}

func TestRootsLinear(t *testing.T) {
	// p(t) = -6 + 3t => root at t=2
	roots, err := Roots([]float64{-6, 3})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.InDelta(t, 2, roots[0].Re, 1e-9)
	assert.Zero(t, roots[0].Im)
}

func TestRootsQuadraticReal(t *testing.T) {
	// p(t) = (t-1)(t-2) = 2 - 3t + t^2
	roots, err := Roots([]float64{2, -3, 1})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	vals := []float64{roots[0].Re, roots[1].Re}
	sort.Float64s(vals)
	assert.InDelta(t, 1, vals[0], 1e-9)
	assert.InDelta(t, 2, vals[1], 1e-9)
}

func TestRootsQuadraticComplex(t *testing.T) {
	// t^2 + 1 = 0 => +-i
	roots, err := Roots([]float64{1, 0, 1})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	for _, r := range roots {
		assert.InDelta(t, 0, r.Re, 1e-9)
		assert.InDelta(t, 1, math.Abs(r.Im), 1e-9)
	}
}

func TestRootsCubicResiduals(t *testing.T) {
	// p(t) = (t-1)(t-2)(t-3) = -6 + 11t - 6t^2 + t^3
	c := []float64{-6, 11, -6, 1}
	roots, err := Roots(c)
	require.NoError(t, err)
	require.Len(t, roots, 3)
	sumAbs := 0.0
	for _, ci := range c {
		sumAbs += math.Abs(ci)
	}
	for _, r := range roots {
		p := evalComplex(c, r)
		assert.Less(t, p.abs1(), 1e-6*(1+sumAbs), "root %+v has too large a residual", r)
	}
}

func TestRootsLeadingZerosProduceZeroRoots(t *testing.T) {
	// p(t) = t^2 * (t - 5) = -5t^2 + t^3 => coefficients [0, 0, -5, 1]
	roots, err := Roots([]float64{0, 0, -5, 1})
	require.NoError(t, err)
	require.Len(t, roots, 3)
	zeroCount := 0
	for _, r := range roots {
		if r.Re == 0 && r.Im == 0 {
			zeroCount++
		}
	}
	assert.Equal(t, 2, zeroCount, "expected 2 zero roots among %+v", roots)
}

// TestRootsLeadingZeroWithDeflatedIterativeBranch exercises the
// remaining>=3 durandKerner branch behind a leading zero root: without
// deflating to the active tail before evaluating, the iteration tests
// candidate roots against the wrong (un-deflated) polynomial and never
// converges.
func TestRootsLeadingZeroWithDeflatedIterativeBranch(t *testing.T) {
	// p(t) = t^4 - t = t*(t^3 - 1) => coefficients [0, -1, 0, 0, 1]
	c := []float64{0, -1, 0, 0, 1}
	roots, err := Roots(c)
	require.NoError(t, err)
	require.Len(t, roots, 4)

	foundZero := false
	var cubeRoots []Complex
	for _, r := range roots {
		if r.Re == 0 && r.Im == 0 {
			foundZero = true
			continue
		}
		cubeRoots = append(cubeRoots, r)
	}
	assert.True(t, foundZero, "expected the factored-out root at zero")
	require.Len(t, cubeRoots, 3)

	sumAbs := 0.0
	for _, ci := range c {
		sumAbs += math.Abs(ci)
	}
	for _, r := range cubeRoots {
		assert.False(t, math.IsNaN(r.Re) || math.IsNaN(r.Im), "root %+v diverged to NaN", r)
		p := evalComplex(c, r)
		assert.Less(t, p.abs1(), 1e-6*(1+sumAbs), "cube root %+v has too large a residual", r)
	}
}

func TestRootsIdenticallyZero(t *testing.T) {
	_, err := Roots([]float64{0})
	assert.ErrorIs(t, err, ErrIllDefined)
}

func TestRootsConstantNonzero(t *testing.T) {
	roots, err := Roots([]float64{5})
	require.NoError(t, err)
	assert.Nil(t, roots, "expected no roots for nonzero constant")
}
