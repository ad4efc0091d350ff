package frame

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ============================================================================
// DATAFRAME — columnar table of named Series
// ============================================================================
// A DataFrame is immutable: selection, filtering, sorting and cleaning all
// return a new frame that may share Series with the original.
//
// DataFrame satisfies engine.RecordView, so the query engine reads it in
// place: non-numeric columns are dimensions, numeric columns are measures.
// ============================================================================

var (
	ErrColumnNotFound   = errors.New("column not found")
	ErrDuplicateColumn  = errors.New("duplicate column")
	ErrLengthMismatch   = errors.New("column length mismatch")
	ErrNotNumeric       = errors.New("column is not numeric")
	ErrNoNumericColumns = errors.New("no numeric columns")
	ErrInvalidQuery     = errors.New("invalid query expression")
)

// RecordCountMeasure is the synthetic measure that reads 1 for every row.
const RecordCountMeasure = "record_count"

// DataFrame is an ordered collection of equal-length Series.
type DataFrame struct {
	name    string
	columns []*Series
	index   map[string]int
	rows    int
}

// New assembles a DataFrame from series. All series must share a length
// and have distinct names.
func New(series ...*Series) (*DataFrame, error) {
	df := &DataFrame{
		columns: make([]*Series, 0, len(series)),
		index:   make(map[string]int, len(series)),
	}
	for i, s := range series {
		if s == nil {
			return nil, fmt.Errorf("series %d is nil", i)
		}
		if _, dup := df.index[s.name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, s.name)
		}
		if i == 0 {
			df.rows = s.Len()
		} else if s.Len() != df.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, expected %d", ErrLengthMismatch, s.name, s.Len(), df.rows)
		}
		df.index[s.name] = len(df.columns)
		df.columns = append(df.columns, s)
	}
	return df, nil
}

// FromMap builds a DataFrame from column name → slice. Columns listed in
// order come first; the rest follow alphabetically.
func FromMap(data map[string]any, order ...string) (*DataFrame, error) {
	names := make([]string, 0, len(data))
	listed := make(map[string]bool, len(order))
	for _, name := range order {
		if _, ok := data[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		if !listed[name] {
			listed[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range data {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	series := make([]*Series, 0, len(names))
	for _, name := range names {
		s, err := NewSeries(name, data[name])
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return New(series...)
}

// Name returns the dataset name, typically the source file's base name.
func (df *DataFrame) Name() string { return df.name }

// WithName returns a shallow copy carrying a new dataset name.
func (df *DataFrame) WithName(name string) *DataFrame {
	c := df.shallow()
	c.name = name
	return c
}

func (df *DataFrame) shallow() *DataFrame {
	c := &DataFrame{
		name:    df.name,
		columns: append([]*Series(nil), df.columns...),
		index:   make(map[string]int, len(df.index)),
		rows:    df.rows,
	}
	for k, v := range df.index {
		c.index[k] = v
	}
	return c
}

// Shape returns (rows, columns).
func (df *DataFrame) Shape() (int, int) { return df.rows, len(df.columns) }

// Columns returns the column names in order.
func (df *DataFrame) Columns() []string {
	names := make([]string, len(df.columns))
	for i, s := range df.columns {
		names[i] = s.name
	}
	return names
}

// HasColumn reports whether name is a column.
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.index[name]
	return ok
}

// Column returns the named Series.
func (df *DataFrame) Column(name string) (*Series, error) {
	i, ok := df.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return df.columns[i], nil
}

// ColumnAt returns the i-th Series.
func (df *DataFrame) ColumnAt(i int) *Series { return df.columns[i] }

// ColumnType pairs a column name with its dtype.
type ColumnType struct {
	Name  string
	DType DType
}

// Dtypes returns each column's dtype in column order.
func (df *DataFrame) Dtypes() []ColumnType {
	out := make([]ColumnType, len(df.columns))
	for i, s := range df.columns {
		out[i] = ColumnType{Name: s.name, DType: s.dtype}
	}
	return out
}

// NumericColumns returns the names of Float and Int columns.
func (df *DataFrame) NumericColumns() []string {
	var out []string
	for _, s := range df.columns {
		if s.dtype.IsNumeric() {
			out = append(out, s.name)
		}
	}
	return out
}

// ============================================================================
// ROW SELECTION
// ============================================================================

// Take returns the rows at idx, in that order.
func (df *DataFrame) Take(idx []int) *DataFrame {
	c := df.shallow()
	for i, s := range df.columns {
		c.columns[i] = s.Take(idx)
	}
	c.rows = len(idx)
	return c
}

// Slice returns rows [start, end), clamped to the frame.
func (df *DataFrame) Slice(start, end int) *DataFrame {
	start = max(0, min(start, df.rows))
	end = max(start, min(end, df.rows))
	idx := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		idx = append(idx, i)
	}
	return df.Take(idx)
}

// Head returns the first n rows.
func (df *DataFrame) Head(n int) *DataFrame { return df.Slice(0, n) }

// Tail returns the last n rows.
func (df *DataFrame) Tail(n int) *DataFrame { return df.Slice(df.rows-n, df.rows) }

// Filter keeps the rows for which keep returns true.
func (df *DataFrame) Filter(keep func(row int) bool) *DataFrame {
	idx := make([]int, 0, df.rows)
	for i := 0; i < df.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return df.Take(idx)
}

// SortValues orders rows by one column. Nulls sort last either way and
// ties keep their original order.
func (df *DataFrame) SortValues(column string, ascending bool) (*DataFrame, error) {
	s, err := df.Column(column)
	if err != nil {
		return nil, err
	}
	idx := make([]int, df.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if s.null[ia] || s.null[ib] {
			return !s.null[ia] && s.null[ib]
		}
		c := compareCells(s, ia, ib)
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return df.Take(idx), nil
}

func compareCells(s *Series, a, b int) int {
	switch {
	case s.nums != nil:
		switch {
		case s.nums[a] < s.nums[b]:
			return -1
		case s.nums[a] > s.nums[b]:
			return 1
		}
		return 0
	case s.dtype == Time:
		return s.times[a].Compare(s.times[b])
	default:
		return strings.Compare(s.strs[a], s.strs[b])
	}
}

// ============================================================================
// COLUMN SELECTION
// ============================================================================

// Select returns a frame with only the named columns, in the given order.
func (df *DataFrame) Select(names ...string) (*DataFrame, error) {
	series := make([]*Series, 0, len(names))
	for _, name := range names {
		s, err := df.Column(name)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	out, err := New(series...)
	if err != nil {
		return nil, err
	}
	out.name = df.name
	out.rows = df.rows
	return out, nil
}

// Drop returns a frame without the named columns.
func (df *DataFrame) Drop(names ...string) (*DataFrame, error) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if !df.HasColumn(name) {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		drop[name] = true
	}
	var keep []string
	for _, s := range df.columns {
		if !drop[s.name] {
			keep = append(keep, s.name)
		}
	}
	return df.Select(keep...)
}

// WithColumn adds s, or replaces the column with the same name.
func (df *DataFrame) WithColumn(s *Series) (*DataFrame, error) {
	if len(df.columns) > 0 && s.Len() != df.rows {
		return nil, fmt.Errorf("%w: %s has %d rows, expected %d", ErrLengthMismatch, s.name, s.Len(), df.rows)
	}
	c := df.shallow()
	if i, ok := c.index[s.name]; ok {
		c.columns[i] = s
		return c, nil
	}
	c.index[s.name] = len(c.columns)
	c.columns = append(c.columns, s)
	c.rows = s.Len()
	return c, nil
}

// Rename maps old column names to new ones. Unknown names are an error.
func (df *DataFrame) Rename(names map[string]string) (*DataFrame, error) {
	series := make([]*Series, len(df.columns))
	copy(series, df.columns)
	for from, to := range names {
		i, ok := df.index[from]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, from)
		}
		series[i] = series[i].Rename(to)
	}
	out, err := New(series...)
	if err != nil {
		return nil, err
	}
	out.name = df.name
	return out, nil
}

// ============================================================================
// RECORD VIEW — engine access
// ============================================================================

// Len returns the row count.
func (df *DataFrame) Len() int { return df.rows }

// Dimension returns cell (i, key) as text, or "" for nulls and unknown keys.
func (df *DataFrame) Dimension(i int, key string) string {
	c, ok := df.index[key]
	if !ok || i < 0 || i >= df.rows {
		return ""
	}
	return df.columns[c].Format(i)
}

// Measure returns cell (i, key) as a number. Nulls and non-numeric columns
// read as 0. The synthetic record_count measure reads 1.
func (df *DataFrame) Measure(i int, key string) float64 {
	c, ok := df.index[key]
	if !ok {
		if key == RecordCountMeasure && i >= 0 && i < df.rows {
			return 1
		}
		return 0
	}
	if i < 0 || i >= df.rows {
		return 0
	}
	v, _ := df.columns[c].Float(i)
	return v
}

// DimensionKeys returns the non-numeric columns.
func (df *DataFrame) DimensionKeys() []string {
	var out []string
	for _, s := range df.columns {
		if !s.dtype.IsNumeric() {
			out = append(out, s.name)
		}
	}
	return out
}

// MeasureKeys returns the numeric columns.
func (df *DataFrame) MeasureKeys() []string { return df.NumericColumns() }

// ============================================================================
// RENDERING
// ============================================================================

const (
	renderEdge = 10
	renderMax  = 2 * renderEdge
)

// String renders the frame as a table. Long frames show the first and
// last ten rows around an ellipsis row.
func (df *DataFrame) String() string {
	var b strings.Builder
	t := table.NewWriter()
	t.SetOutputMirror(&b)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, 0, len(df.columns)+1)
	header = append(header, "")
	for _, s := range df.columns {
		header = append(header, s.name)
	}
	t.AppendHeader(header)

	appendRow := func(i int) {
		row := make(table.Row, 0, len(df.columns)+1)
		row = append(row, i)
		for _, s := range df.columns {
			if s.null[i] {
				row = append(row, "NaN")
				continue
			}
			row = append(row, s.Format(i))
		}
		t.AppendRow(row)
	}

	if df.rows <= renderMax {
		for i := 0; i < df.rows; i++ {
			appendRow(i)
		}
	} else {
		for i := 0; i < renderEdge; i++ {
			appendRow(i)
		}
		gap := make(table.Row, len(df.columns)+1)
		for i := range gap {
			gap[i] = "..."
		}
		t.AppendRow(gap)
		for i := df.rows - renderEdge; i < df.rows; i++ {
			appendRow(i)
		}
	}

	t.Render()
	fmt.Fprintf(&b, "[%d rows x %d columns]\n", df.rows, len(df.columns))
	return b.String()
}
