package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMeanStd(t *testing.T) {
	mean, std := CalculateMeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 2.0, std)

	mean, std = CalculateMeanStd([]float64{3})
	assert.Equal(t, 3.0, mean)
	assert.Equal(t, 0.0, std)

	mean, std = CalculateMeanStd(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestCalculateCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, CalculateCorrelation(x, []float64{2, 4, 6, 8, 10}), 1e-12)
	assert.InDelta(t, -1.0, CalculateCorrelation(x, []float64{5, 4, 3, 2, 1}), 1e-12)
	assert.Equal(t, 0.0, CalculateCorrelation(x, []float64{1, 1, 1, 1, 1}))
	assert.Equal(t, 0.0, CalculateCorrelation(x, []float64{1, 2}))
}

func TestLinearRegression(t *testing.T) {
	x := []float64{0.01, -0.02, 0.03, 0.00, 0.015}
	y := make([]float64, len(x))
	for i := range x {
		y[i] = 0.001 + 1.5*x[i]
	}

	alpha, beta := LinearRegression(x, y)
	assert.InDelta(t, 1.5, beta, 1e-9)
	assert.InDelta(t, 0.001, alpha, 1e-9)

	alpha, beta = LinearRegression([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, beta)
	assert.Equal(t, 2.0, alpha)
}

func TestEmpiricalQuantile(t *testing.T) {
	data := make([]float64, 100)
	for i := range data {
		data[i] = float64(99 - i)
	}
	assert.Equal(t, 5.0, EmpiricalQuantile(data, 0.05))
	assert.Equal(t, 1.0, EmpiricalQuantile(data, 0.01))
	assert.Equal(t, 0.0, EmpiricalQuantile(data, 0))
	assert.Equal(t, 99.0, EmpiricalQuantile(data, 1))
	assert.Equal(t, 0.0, EmpiricalQuantile(nil, 0.5))
}

func TestDownsideDeviation(t *testing.T) {
	assert.InDelta(t, math.Sqrt(0.00025), DownsideDeviation([]float64{0.01, -0.03, 0.02, -0.01}, 0), 1e-12)
	assert.Equal(t, 0.0, DownsideDeviation([]float64{0.01, 0.02}, 0))
}

func TestPercentChangesAndDrawdowns(t *testing.T) {
	assert.Equal(t, []float64{0.1, -0.5}, PercentChanges([]float64{100, 110, 55}))
	assert.Equal(t, []float64{0}, PercentChanges([]float64{0, 5}))
	assert.Empty(t, PercentChanges([]float64{1}))

	dd := Drawdowns([]float64{0.1, -0.5, 0.2})
	assert.InDelta(t, 0.0, dd[0], 1e-12)
	assert.InDelta(t, -0.5, dd[1], 1e-12)
	assert.InDelta(t, -0.4, dd[2], 1e-12)
}

func TestCalculateChangePercent(t *testing.T) {
	assert.InDelta(t, 0.05, CalculateChangePercent(105, 100), 1e-12)
	assert.Equal(t, 0.0, CalculateChangePercent(105, 0))
}
