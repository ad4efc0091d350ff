// Package stats runs descriptive and inferential statistics over the
// numeric columns of a frame.DataFrame.
package stats

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/spektr-org/asktable/frame"
)

var (
	// ErrInsufficientData is returned when a test needs more values than it got.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrUnknownMethod is returned for an unsupported outlier method.
	ErrUnknownMethod = errors.New("unknown method")
)

// Significance is the p-value threshold used throughout.
const Significance = 0.05

// Analyzer computes statistics for one DataFrame.
type Analyzer struct {
	df *frame.DataFrame
}

// New creates an Analyzer over df.
func New(df *frame.DataFrame) *Analyzer {
	return &Analyzer{df: df}
}

// ============================================================================
// DESCRIPTIVE
// ============================================================================

// ColumnStats summarizes one numeric column. Kurtosis is excess kurtosis.
type ColumnStats struct {
	Column   string  `json:"column"`
	Count    int     `json:"count"`
	Missing  int     `json:"missing"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Min      float64 `json:"min"`
	Q1       float64 `json:"q1"`
	Median   float64 `json:"median"`
	Q3       float64 `json:"q3"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// Descriptive returns ColumnStats for every numeric column.
func (a *Analyzer) Descriptive() []ColumnStats {
	var out []ColumnStats
	for _, name := range a.df.NumericColumns() {
		s, _ := a.df.Column(name)
		vals := s.Floats()
		cs := ColumnStats{Column: name, Count: len(vals), Missing: s.NullCount()}
		if len(vals) == 0 {
			nan := math.NaN()
			cs.Mean, cs.Std, cs.Min, cs.Q1, cs.Median, cs.Q3, cs.Max, cs.Skewness, cs.Kurtosis = nan, nan, nan, nan, nan, nan, nan, nan, nan
			out = append(out, cs)
			continue
		}
		sorted := frame.Sorted(vals)
		cs.Mean = frame.Mean(vals)
		cs.Std = frame.StdDev(vals)
		cs.Min = sorted[0]
		cs.Q1 = frame.Quantile(sorted, 0.25)
		cs.Median = frame.Quantile(sorted, 0.5)
		cs.Q3 = frame.Quantile(sorted, 0.75)
		cs.Max = sorted[len(sorted)-1]
		cs.Skewness, cs.Kurtosis = moments(vals)
		out = append(out, cs)
	}
	return out
}

// moments returns bias-corrected skewness and excess kurtosis, or NaN when
// the column is too short or constant.
func moments(vals []float64) (skew, kurt float64) {
	if len(vals) < 4 || frame.StdDev(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.Skew(vals, nil), stat.ExKurtosis(vals, nil)
}

// ============================================================================
// CORRELATION
// ============================================================================

// Pair is one correlated column pair.
type Pair struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	R      float64 `json:"r"`
	PValue float64 `json:"pValue"`
	N      int     `json:"n"`
}

// CorrelationResult holds the Pearson matrix and the significant pairs.
type CorrelationResult struct {
	Columns     []string    `json:"columns"`
	Matrix      [][]float64 `json:"matrix"`
	Significant []Pair      `json:"significant"`
}

// Correlations computes Pearson r over pairwise-complete rows. A pair is
// significant when the t-test on r gives p < Significance.
func (a *Analyzer) Correlations() (*CorrelationResult, error) {
	cols := a.df.NumericColumns()
	if len(cols) < 2 {
		return nil, fmt.Errorf("%w: correlation needs at least 2 numeric columns", frame.ErrNoNumericColumns)
	}

	series := make([]*frame.Series, len(cols))
	for i, c := range cols {
		series[i], _ = a.df.Column(c)
	}

	res := &CorrelationResult{Columns: cols, Matrix: make([][]float64, len(cols))}
	for i := range cols {
		res.Matrix[i] = make([]float64, len(cols))
		res.Matrix[i][i] = 1
	}

	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			x, y := pairwise(series[i], series[j])
			r := math.NaN()
			if len(x) >= 3 && frame.StdDev(x) > 0 && frame.StdDev(y) > 0 {
				r = stat.Correlation(x, y, nil)
			}
			res.Matrix[i][j], res.Matrix[j][i] = r, r
			if math.IsNaN(r) {
				continue
			}
			p := correlationPValue(r, len(x))
			if p < Significance {
				res.Significant = append(res.Significant, Pair{A: cols[i], B: cols[j], R: r, PValue: p, N: len(x)})
			}
		}
	}
	return res, nil
}

func pairwise(a, b *frame.Series) (x, y []float64) {
	for i := 0; i < a.Len(); i++ {
		va, okA := a.Float(i)
		vb, okB := b.Float(i)
		if okA && okB {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return x, y
}

// correlationPValue is the two-sided p-value of t = r·√((n−2)/(1−r²)).
func correlationPValue(r float64, n int) float64 {
	if n < 3 {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	return twoSided(t, float64(n-2))
}

func twoSided(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

// ============================================================================
// OUTLIERS
// ============================================================================

// Outlier methods.
const (
	MethodIQR    = "iqr"
	MethodZScore = "zscore"
)

// OutlierResult lists the outlying rows of one column.
type OutlierResult struct {
	Column     string  `json:"column"`
	Method     string  `json:"method"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Indices    []int   `json:"indices"`
}

// Outliers flags values outside 1.5·IQR fences ("iqr") or with |z| > 3
// ("zscore") in every numeric column.
func (a *Analyzer) Outliers(method string) ([]OutlierResult, error) {
	if method == "" {
		method = MethodIQR
	}
	if method != MethodIQR && method != MethodZScore {
		return nil, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownMethod, method, MethodIQR, MethodZScore)
	}

	var out []OutlierResult
	for _, name := range a.df.NumericColumns() {
		s, _ := a.df.Column(name)
		vals := s.Floats()
		if len(vals) == 0 {
			continue
		}
		res := OutlierResult{Column: name, Method: method}
		res.Lower, res.Upper = fences(vals, method)
		for i := 0; i < s.Len(); i++ {
			v, ok := s.Float(i)
			if ok && (v < res.Lower || v > res.Upper) {
				res.Indices = append(res.Indices, i)
			}
		}
		res.Count = len(res.Indices)
		res.Percentage = float64(res.Count) / float64(len(vals)) * 100
		out = append(out, res)
	}
	return out, nil
}

func fences(vals []float64, method string) (lower, upper float64) {
	if method == MethodZScore {
		mean, std := frame.Mean(vals), frame.StdDev(vals)
		if math.IsNaN(std) || std == 0 {
			return mean, mean
		}
		return mean - 3*std, mean + 3*std
	}
	sorted := frame.Sorted(vals)
	q1, q3 := frame.Quantile(sorted, 0.25), frame.Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// ============================================================================
// NORMALITY
// ============================================================================

// NormalityResult is a Jarque–Bera test on one column.
type NormalityResult struct {
	Column     string  `json:"column"`
	N          int     `json:"n"`
	JarqueBera float64 `json:"jarqueBera"`
	PValue     float64 `json:"pValue"`
	Skewness   float64 `json:"skewness"`
	Kurtosis   float64 `json:"kurtosis"`
	IsNormal   bool    `json:"isNormal"`
	Assessment string  `json:"assessment"`
}

const minNormalitySample = 8

// Normality runs Jarque–Bera on every numeric column. The statistic is
// n/6·(S² + K²/4), compared against χ²(2).
func (a *Analyzer) Normality() []NormalityResult {
	chi2 := distuv.ChiSquared{K: 2}
	var out []NormalityResult
	for _, name := range a.df.NumericColumns() {
		s, _ := a.df.Column(name)
		vals := s.Floats()
		res := NormalityResult{Column: name, N: len(vals)}

		skew, kurt := moments(vals)
		if len(vals) < minNormalitySample || math.IsNaN(skew) {
			res.JarqueBera, res.PValue = math.NaN(), math.NaN()
			res.Skewness, res.Kurtosis = skew, kurt
			res.Assessment = fmt.Sprintf("insufficient data (need %d non-constant values)", minNormalitySample)
			out = append(out, res)
			continue
		}

		n := float64(len(vals))
		res.Skewness, res.Kurtosis = skew, kurt
		res.JarqueBera = n / 6 * (skew*skew + kurt*kurt/4)
		res.PValue = chi2.Survival(res.JarqueBera)
		res.IsNormal = res.PValue > Significance
		if res.IsNormal {
			res.Assessment = "consistent with a normal distribution"
		} else {
			res.Assessment = "not normally distributed"
		}
		out = append(out, res)
	}
	return out
}

// ============================================================================
// HYPOTHESIS TESTING
// ============================================================================

// TTestResult is a Welch two-sample t-test.
type TTestResult struct {
	GroupColumn string  `json:"groupColumn"`
	ValueColumn string  `json:"valueColumn"`
	Group1      string  `json:"group1"`
	Group2      string  `json:"group2"`
	N1          int     `json:"n1"`
	N2          int     `json:"n2"`
	Mean1       float64 `json:"mean1"`
	Mean2       float64 `json:"mean2"`
	T           float64 `json:"t"`
	DF          float64 `json:"df"`
	PValue      float64 `json:"pValue"`
	Significant bool    `json:"significant"`
}

// TTest compares valueCol between the rows where groupCol equals g1 and g2.
// Group values match case-insensitively.
func (a *Analyzer) TTest(groupCol, valueCol, g1, g2 string) (*TTestResult, error) {
	groups, err := a.df.Column(groupCol)
	if err != nil {
		return nil, err
	}
	values, err := a.df.Column(valueCol)
	if err != nil {
		return nil, err
	}
	if !values.DType().IsNumeric() {
		return nil, fmt.Errorf("%w: %s", frame.ErrNotNumeric, valueCol)
	}

	var x1, x2 []float64
	for i := 0; i < a.df.Len(); i++ {
		v, ok := values.Float(i)
		if !ok || groups.IsNull(i) {
			continue
		}
		switch g := groups.Format(i); {
		case strings.EqualFold(g, g1):
			x1 = append(x1, v)
		case strings.EqualFold(g, g2):
			x2 = append(x2, v)
		}
	}
	if len(x1) < 2 || len(x2) < 2 {
		return nil, fmt.Errorf("%w: t-test needs at least 2 values per group (%s=%d, %s=%d)",
			ErrInsufficientData, g1, len(x1), g2, len(x2))
	}

	res := &TTestResult{
		GroupColumn: groupCol, ValueColumn: valueCol,
		Group1: g1, Group2: g2,
		N1: len(x1), N2: len(x2),
		Mean1: frame.Mean(x1), Mean2: frame.Mean(x2),
	}

	s1, s2 := frame.StdDev(x1), frame.StdDev(x2)
	v1, v2 := s1*s1/float64(len(x1)), s2*s2/float64(len(x2))
	se := math.Sqrt(v1 + v2)
	switch {
	case se == 0 && res.Mean1 == res.Mean2:
		res.T, res.DF, res.PValue = 0, float64(len(x1)+len(x2)-2), 1
	case se == 0:
		res.T, res.DF, res.PValue = math.Copysign(math.Inf(1), res.Mean1-res.Mean2), float64(len(x1)+len(x2)-2), 0
	default:
		res.T = (res.Mean1 - res.Mean2) / se
		res.DF = (v1 + v2) * (v1 + v2) / (v1*v1/float64(len(x1)-1) + v2*v2/float64(len(x2)-1))
		res.PValue = twoSided(res.T, res.DF)
	}
	res.Significant = res.PValue < Significance
	return res, nil
}
