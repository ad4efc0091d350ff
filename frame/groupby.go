package frame

import (
	"fmt"
	"math"
	"strings"
)

// GroupBy partitions rows by the values of one or more key columns.
// Groups keep first-seen order.
type GroupBy struct {
	df     *DataFrame
	keys   []*Series
	order  []string
	rows   map[string][]int
	labels map[string][]string
}

// Aggregation names one reduction for GroupBy.Aggregate.
type Aggregation struct {
	Column string
	Func   string // sum mean avg count min max median std nunique
	As     string // output column name; defaults to Column
}

// GroupBy starts a grouped aggregation keyed on cols.
func (df *DataFrame) GroupBy(cols ...string) (*GroupBy, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("group by needs at least one column")
	}
	g := &GroupBy{
		df:     df,
		rows:   make(map[string][]int),
		labels: make(map[string][]string),
	}
	for _, name := range cols {
		s, err := df.Column(name)
		if err != nil {
			return nil, err
		}
		g.keys = append(g.keys, s)
	}

	for i := 0; i < df.rows; i++ {
		parts := make([]string, len(g.keys))
		skip := false
		for k, s := range g.keys {
			if s.null[i] {
				skip = true
				break
			}
			parts[k] = s.Format(i)
		}
		// Null keys are dropped, as pandas does by default.
		if skip {
			continue
		}
		key := strings.Join(parts, "\x1f")
		if _, ok := g.rows[key]; !ok {
			g.order = append(g.order, key)
			g.labels[key] = parts
		}
		g.rows[key] = append(g.rows[key], i)
	}
	return g, nil
}

// NGroups returns the number of distinct keys.
func (g *GroupBy) NGroups() int { return len(g.order) }

// Groups returns each key's row indices, keyed by the joined label.
func (g *GroupBy) Groups() map[string][]int {
	out := make(map[string][]int, len(g.rows))
	for k, v := range g.rows {
		label := strings.Join(g.labels[k], ", ")
		out[label] = v
	}
	return out
}

// Agg reduces one column with fn.
func (g *GroupBy) Agg(column, fn string) (*DataFrame, error) {
	return g.Aggregate(Aggregation{Column: column, Func: fn})
}

// Sum is Agg(column, "sum").
func (g *GroupBy) Sum(column string) (*DataFrame, error) { return g.Agg(column, "sum") }

// Mean is Agg(column, "mean").
func (g *GroupBy) Mean(column string) (*DataFrame, error) { return g.Agg(column, "mean") }

// Size counts rows per group into a "size" column.
func (g *GroupBy) Size() (*DataFrame, error) {
	counts := make([]int64, len(g.order))
	for i, key := range g.order {
		counts[i] = int64(len(g.rows[key]))
	}
	size, _ := NewSeries("size", counts)
	return g.assemble([]*Series{size})
}

// Aggregate applies several reductions. The result has one row per group:
// the key columns followed by one column per aggregation.
func (g *GroupBy) Aggregate(aggs ...Aggregation) (*DataFrame, error) {
	out := make([]*Series, 0, len(aggs))
	for _, a := range aggs {
		s, err := g.df.Column(a.Column)
		if err != nil {
			return nil, err
		}
		name := a.As
		if name == "" {
			name = a.Column
			if g.isKey(name) {
				name = a.Column + "_" + a.Func
			}
		}

		values := make([]float64, len(g.order))
		for i, key := range g.order {
			v, err := reduce(s, g.rows[key], a.Func)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		col, _ := NewSeries(name, values)
		if isCountFunc(a.Func) {
			col, _ = col.AsInt()
		}
		out = append(out, col)
	}
	return g.assemble(out)
}

func (g *GroupBy) isKey(name string) bool {
	for _, s := range g.keys {
		if s.name == name {
			return true
		}
	}
	return false
}

func (g *GroupBy) assemble(values []*Series) (*DataFrame, error) {
	series := make([]*Series, 0, len(g.keys)+len(values))
	for k, s := range g.keys {
		raw := make([]string, len(g.order))
		for i, key := range g.order {
			raw[i] = g.labels[key][k]
		}
		keyCol, err := NewSeries(s.name, raw)
		if err != nil {
			return nil, err
		}
		series = append(series, keyCol)
	}
	series = append(series, values...)
	out, err := New(series...)
	if err != nil {
		return nil, err
	}
	out.name = g.df.name
	return out, nil
}

func isCountFunc(fn string) bool {
	return fn == "count" || fn == "nunique" || fn == "size"
}

// reduce applies fn to the non-null cells of s at rows.
func reduce(s *Series, rows []int, fn string) (float64, error) {
	switch fn {
	case "count":
		n := 0
		for _, i := range rows {
			if !s.null[i] {
				n++
			}
		}
		return float64(n), nil
	case "size":
		return float64(len(rows)), nil
	case "nunique":
		seen := make(map[string]bool)
		for _, i := range rows {
			if !s.null[i] {
				seen[s.Format(i)] = true
			}
		}
		return float64(len(seen)), nil
	}

	if s.nums == nil {
		return 0, fmt.Errorf("%w: cannot %s %s (%s)", ErrNotNumeric, fn, s.name, s.dtype)
	}
	vals := make([]float64, 0, len(rows))
	for _, i := range rows {
		if !s.null[i] {
			vals = append(vals, s.nums[i])
		}
	}

	switch fn {
	case "sum":
		return Sum(vals), nil
	case "mean", "avg":
		return Mean(vals), nil
	case "median":
		return Median(vals), nil
	case "std":
		return StdDev(vals), nil
	case "min":
		if len(vals) == 0 {
			return math.NaN(), nil
		}
		m := vals[0]
		for _, v := range vals[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	case "max":
		if len(vals) == 0 {
			return math.NaN(), nil
		}
		m := vals[0]
		for _, v := range vals[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", fn)
	}
}
