package frame

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/stat"

	"github.com/spektr-org/asktable/helpers"
)

// ============================================================================
// SUMMARIES — describe, info, nulls, duplicates, memory
// ============================================================================

// DescribeStats are the row labels of Describe, in order.
var DescribeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Describe summarises every numeric column. The first column, "stat",
// holds the row labels; each numeric column becomes a Float column.
// std is the sample standard deviation and quantiles interpolate linearly.
func (df *DataFrame) Describe() (*DataFrame, error) {
	numeric := df.NumericColumns()
	if len(numeric) == 0 {
		return nil, ErrNoNumericColumns
	}

	labels, _ := NewSeries("stat", DescribeStats)
	series := []*Series{labels}
	for _, name := range numeric {
		s, _ := df.Column(name)
		vals := s.Floats()
		sorted := Sorted(vals)
		col := []float64{
			float64(len(vals)),
			Mean(vals),
			StdDev(vals),
			Quantile(sorted, 0),
			Quantile(sorted, 0.25),
			Quantile(sorted, 0.5),
			Quantile(sorted, 0.75),
			Quantile(sorted, 1),
		}
		out, _ := NewSeries(name, col)
		series = append(series, out)
	}
	out, err := New(series...)
	if err != nil {
		return nil, err
	}
	out.name = df.name
	return out, nil
}

// ColumnInfo is one line of Info.
type ColumnInfo struct {
	Name    string `json:"name"`
	DType   string `json:"dtype"`
	NonNull int    `json:"nonNull"`
	Nulls   int    `json:"nulls"`
}

// Info is the structural summary of a frame.
type Info struct {
	Name        string       `json:"name,omitempty"`
	Rows        int          `json:"rows"`
	Columns     []ColumnInfo `json:"columns"`
	MemoryBytes int64        `json:"memoryBytes"`
}

// Info reports per-column dtype and non-null counts plus memory usage.
func (df *DataFrame) Info() Info {
	info := Info{Name: df.name, Rows: df.rows, MemoryBytes: df.MemoryUsage()}
	for _, s := range df.columns {
		nulls := s.NullCount()
		info.Columns = append(info.Columns, ColumnInfo{
			Name:    s.name,
			DType:   s.dtype.String(),
			NonNull: s.Len() - nulls,
			Nulls:   nulls,
		})
	}
	return info
}

// String renders Info as a table with a memory footer.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d entries, %d columns\n", i.Rows, len(i.Columns))
	t := table.NewWriter()
	t.SetOutputMirror(&b)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column", "Non-Null Count", "Dtype"})
	for n, c := range i.Columns {
		t.AppendRow(table.Row{n, c.Name, fmt.Sprintf("%d non-null", c.NonNull), c.DType})
	}
	t.Render()
	fmt.Fprintf(&b, "memory usage: %s\n", helpers.FormatBytes(i.MemoryBytes))
	return b.String()
}

// NullCounts returns missing cells per column.
func (df *DataFrame) NullCounts() map[string]int {
	out := make(map[string]int, len(df.columns))
	for _, s := range df.columns {
		out[s.name] = s.NullCount()
	}
	return out
}

// TotalNulls returns the number of missing cells in the frame.
func (df *DataFrame) TotalNulls() int {
	total := 0
	for _, s := range df.columns {
		total += s.NullCount()
	}
	return total
}

// Duplicated marks every row that repeats an earlier row. With a subset,
// only those columns are compared.
func (df *DataFrame) Duplicated(subset ...string) ([]bool, error) {
	cols := df.columns
	if len(subset) > 0 {
		cols = make([]*Series, 0, len(subset))
		for _, name := range subset {
			s, err := df.Column(name)
			if err != nil {
				return nil, err
			}
			cols = append(cols, s)
		}
	}

	seen := make(map[string]bool, df.rows)
	dup := make([]bool, df.rows)
	for i := 0; i < df.rows; i++ {
		key := rowKey(cols, i)
		if seen[key] {
			dup[i] = true
			continue
		}
		seen[key] = true
	}
	return dup, nil
}

// DropDuplicates keeps the first occurrence of every row.
func (df *DataFrame) DropDuplicates(subset ...string) (*DataFrame, error) {
	dup, err := df.Duplicated(subset...)
	if err != nil {
		return nil, err
	}
	return df.Filter(func(i int) bool { return !dup[i] }), nil
}

func rowKey(cols []*Series, i int) string {
	var b strings.Builder
	for _, s := range cols {
		if s.null[i] {
			b.WriteString("\x00")
		} else {
			b.WriteString(s.Format(i))
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}

// MemoryUsage estimates the bytes held by the frame's cells.
func (df *DataFrame) MemoryUsage() int64 {
	var total int64
	for _, s := range df.columns {
		total += s.MemoryUsage()
	}
	return total
}

// MemoryUsage estimates the bytes held by the series.
func (s *Series) MemoryUsage() int64 {
	n := int64(s.Len())
	mask := n
	switch s.dtype {
	case Float, Int:
		return mask + 8*n
	case Bool:
		return mask + n
	case Time:
		return mask + 24*n
	default:
		total := mask + 16*n
		for _, v := range s.strs {
			total += int64(len(v))
		}
		return total
	}
}

// ============================================================================
// NUMERIC HELPERS
// ============================================================================

// Sorted returns a sorted copy of xs.
func Sorted(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

// Sum adds xs.
func Sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// StdDev returns the sample standard deviation (n-1 denominator), or NaN
// with fewer than two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// Quantile returns the q-quantile of an already sorted slice using linear
// interpolation between closest ranks, which matches pandas. gonum's
// stat.Quantile interpolates on the empirical CDF and gives different
// quartiles for small samples. Empty input yields NaN.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// Median returns the 50th percentile of xs.
func Median(xs []float64) float64 {
	return Quantile(Sorted(xs), 0.5)
}
