package portfolio

import (
	"math"
	"sort"

	"market-analytics/src/analysis/core"
)

const (
	optimizerIterations = 500
	optimizerTolerance  = 1e-10
)

// -----------------------------------------------------------------------------

// CovarianceMatrix computes pairwise covariances over the days each pair has
// in common.
func CovarianceMatrix(series [][]DatedReturn) [][]float64 {
	n := len(series)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := Align(series[i], series[j])
			c := core.Covariance(a, b)
			cov[i][j], cov[j][i] = c, c
		}
	}
	return cov
}

// -----------------------------------------------------------------------------

// CorrelationMatrix computes pairwise Pearson correlations over common days.
// The diagonal is 1 for any series with variance.
func CorrelationMatrix(series [][]DatedReturn) [][]float64 {
	n := len(series)
	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := Align(series[i], series[j])
			c := core.CalculateCorrelation(a, b)
			corr[i][j], corr[j][i] = c, c
		}
	}
	return corr
}

// -----------------------------------------------------------------------------

func mulVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range m {
		for j := range v {
			out[i] += m[i][j] * v[j]
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// -----------------------------------------------------------------------------

// RiskContribution splits portfolio variance wᵀΣw into per-asset shares
// w_i(Σw)_i / wᵀΣw. Shares sum to 1; a zero-variance portfolio yields zeros.
func RiskContribution(weights []float64, cov [][]float64) []float64 {
	out := make([]float64, len(weights))
	sigmaW := mulVec(cov, weights)
	variance := dot(weights, sigmaW)
	if variance <= 0 {
		return out
	}
	for i := range weights {
		out[i] = weights[i] * sigmaW[i] / variance
	}
	return out
}

// -----------------------------------------------------------------------------

// projectSimplex projects v onto {w : w_i >= 0, Σw_i = 1}.
func projectSimplex(v []float64) []float64 {
	n := len(v)
	u := make([]float64, n)
	copy(u, v)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	cum, theta := 0.0, 0.0
	for i := 0; i < n; i++ {
		cum += u[i]
		t := (cum - 1) / float64(i+1)
		if u[i]-t > 0 {
			theta = t
		}
	}

	out := make([]float64, n)
	for i := range v {
		out[i] = math.Max(v[i]-theta, 0)
	}
	return out
}

// -----------------------------------------------------------------------------

// MinimumVarianceWeights finds long-only, fully invested weights minimizing
// wᵀΣw by projected gradient descent from equal weights. The step is bounded
// by the trace of Σ, which dominates its largest eigenvalue.
func MinimumVarianceWeights(cov [][]float64) []float64 {
	n := len(cov)
	if n == 0 {
		return []float64{}
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}

	trace := 0.0
	for i := 0; i < n; i++ {
		trace += cov[i][i]
	}
	if trace <= 0 {
		return w
	}
	step := 1 / (2 * trace)

	for iter := 0; iter < optimizerIterations; iter++ {
		grad := mulVec(cov, w)
		next := make([]float64, n)
		for i := range w {
			next[i] = w[i] - step*2*grad[i]
		}
		next = projectSimplex(next)

		delta := 0.0
		for i := range w {
			delta += math.Abs(next[i] - w[i])
		}
		w = next
		if delta < optimizerTolerance {
			break
		}
	}
	return w
}
