package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/asktable/frame"
)

func linearFrame(t *testing.T) *frame.DataFrame {
	t.Helper()
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(i + 1)
		y[i] = 2 * x[i]
	}
	df, err := frame.FromMap(map[string]any{"x": x, "y": y}, "x", "y")
	require.NoError(t, err)
	return df
}

func TestDescriptive(t *testing.T) {
	desc := New(linearFrame(t)).Descriptive()
	require.Len(t, desc, 2)

	x := desc[0]
	assert.Equal(t, "x", x.Column)
	assert.Equal(t, 10, x.Count)
	assert.Zero(t, x.Missing)
	assert.InDelta(t, 5.5, x.Mean, 1e-9)
	assert.InDelta(t, 3.0277, x.Std, 1e-4)
	assert.Equal(t, 1.0, x.Min)
	assert.InDelta(t, 3.25, x.Q1, 1e-9)
	assert.InDelta(t, 5.5, x.Median, 1e-9)
	assert.InDelta(t, 7.75, x.Q3, 1e-9)
	assert.Equal(t, 10.0, x.Max)
	assert.InDelta(t, 0, x.Skewness, 1e-9)
	assert.Less(t, x.Kurtosis, 0.0)
}

func TestDescriptiveEmptyColumn(t *testing.T) {
	df, err := frame.FromMap(map[string]any{"v": []float64{math.NaN(), math.NaN()}})
	require.NoError(t, err)

	desc := New(df).Descriptive()
	require.Len(t, desc, 1)
	assert.Equal(t, 2, desc[0].Missing)
	assert.True(t, math.IsNaN(desc[0].Mean))
}

func TestCorrelations(t *testing.T) {
	res, err := New(linearFrame(t)).Correlations()
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, res.Columns)
	assert.InDelta(t, 1, res.Matrix[0][1], 1e-9)
	assert.Equal(t, res.Matrix[0][1], res.Matrix[1][0])
	require.Len(t, res.Significant, 1)
	assert.Equal(t, "x", res.Significant[0].A)
	assert.Equal(t, 10, res.Significant[0].N)
	assert.Less(t, res.Significant[0].PValue, Significance)
}

func TestCorrelationsPairwiseComplete(t *testing.T) {
	df, err := frame.FromMap(map[string]any{
		"a": []float64{1, 2, 3, 4, math.NaN()},
		"b": []float64{2, 4, 6, 8, 100},
	}, "a", "b")
	require.NoError(t, err)

	res, err := New(df).Correlations()
	require.NoError(t, err)
	assert.InDelta(t, 1, res.Matrix[0][1], 1e-9)
}

func TestCorrelationsNeedsTwoColumns(t *testing.T) {
	df, err := frame.FromMap(map[string]any{"a": []float64{1, 2, 3}, "s": []string{"x", "y", "z"}})
	require.NoError(t, err)

	_, err = New(df).Correlations()
	assert.ErrorIs(t, err, frame.ErrNoNumericColumns)
}

func TestOutliers(t *testing.T) {
	df, err := frame.FromMap(map[string]any{"v": []float64{10, 11, 12, 13, 12, 11, 10, 100}})
	require.NoError(t, err)
	a := New(df)

	iqr, err := a.Outliers(MethodIQR)
	require.NoError(t, err)
	require.Len(t, iqr, 1)
	assert.Equal(t, []int{7}, iqr[0].Indices)
	assert.Equal(t, 1, iqr[0].Count)
	assert.InDelta(t, 12.5, iqr[0].Percentage, 1e-9)
	assert.InDelta(t, 8.5, iqr[0].Lower, 1e-9)
	assert.InDelta(t, 14.5, iqr[0].Upper, 1e-9)

	// with eight values no point can sit three deviations out
	z, err := a.Outliers(MethodZScore)
	require.NoError(t, err)
	assert.Zero(t, z[0].Count)

	_, err = a.Outliers("mad")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestNormality(t *testing.T) {
	res := New(linearFrame(t)).Normality()
	require.Len(t, res, 2)
	assert.True(t, res[0].IsNormal)
	assert.Greater(t, res[0].PValue, Significance)

	df, err := frame.FromMap(map[string]any{"v": []float64{1, 2, 3}})
	require.NoError(t, err)
	short := New(df).Normality()
	assert.False(t, short[0].IsNormal)
	assert.Contains(t, short[0].Assessment, "insufficient")

	skewed := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 50}
	df, err = frame.FromMap(map[string]any{"v": skewed})
	require.NoError(t, err)
	res = New(df).Normality()
	assert.False(t, res[0].IsNormal)
}

func TestTTest(t *testing.T) {
	df, err := frame.FromMap(map[string]any{
		"group": []string{"a", "a", "a", "a", "a", "b", "b", "b", "b", "b"},
		"value": []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}, "group", "value")
	require.NoError(t, err)

	res, err := New(df).TTest("group", "value", "A", "b")
	require.NoError(t, err)
	assert.Equal(t, 5, res.N1)
	assert.InDelta(t, 3, res.Mean1, 1e-9)
	assert.InDelta(t, 8, res.Mean2, 1e-9)
	assert.InDelta(t, -5, res.T, 1e-9)
	assert.InDelta(t, 8, res.DF, 1e-9)
	assert.Less(t, res.PValue, 0.01)
	assert.True(t, res.Significant)

	_, err = New(df).TTest("group", "value", "a", "c")
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = New(df).TTest("group", "group", "a", "b")
	assert.ErrorIs(t, err, frame.ErrNotNumeric)

	_, err = New(df).TTest("missing", "value", "a", "b")
	assert.ErrorIs(t, err, frame.ErrColumnNotFound)
}

func TestReport(t *testing.T) {
	r := New(linearFrame(t)).Report()
	assert.Contains(t, r, "DESCRIPTIVE STATISTICS")
	assert.Contains(t, r, "SIGNIFICANT CORRELATIONS")
	assert.Contains(t, r, "NORMALITY")

	df, err := frame.FromMap(map[string]any{"s": []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "No numeric columns to analyze.\n", New(df).Report())
}
