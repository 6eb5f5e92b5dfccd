package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.5, Mean([]float64{1, 2, 3, 4}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{3}))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{0, 0}))
	assert.InDelta(t, 0.4, CoefficientOfVariation([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
}

func TestLinearFit(t *testing.T) {
	slope, intercept, err := IndexFit([]float64{1, 3, 5, 7})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, slope, 1e-12)
	assert.InDelta(t, 1.0, intercept, 1e-12)

	_, _, err = LinearFit([]float64{1, 1}, []float64{2, 3})
	assert.ErrorIs(t, err, ErrSingular)

	_, _, err = IndexFit([]float64{1})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLeastSquaresRecoversCoefficients(t *testing.T) {
	// y = 2 + 0.5*a - 3*b
	var x [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		a := float64(i)
		b := math.Sin(float64(i))
		x = append(x, []float64{1, a, b})
		y = append(y, 2+0.5*a-3*b)
	}

	coef, err := LeastSquares(x, y, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, coef[0], 1e-9)
	assert.InDelta(t, 0.5, coef[1], 1e-9)
	assert.InDelta(t, -3.0, coef[2], 1e-9)
}

func TestLeastSquaresSingularWithoutRidge(t *testing.T) {
	x := [][]float64{{1, 0}, {1, 0}, {1, 0}}
	y := []float64{1, 2, 3}

	_, err := LeastSquares(x, y, 0)
	assert.ErrorIs(t, err, ErrSingular)

	coef, err := LeastSquares(x, y, 1e-6)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, coef[0], 1e-4)
	assert.InDelta(t, 0.0, coef[1], 1e-9)
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 1.23, RoundFloat(1.2345, 2))
	assert.Equal(t, 2.0, RoundFloat(1.5, 0))
}
