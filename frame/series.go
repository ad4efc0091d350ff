package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// SERIES — one typed, nullable column
// ============================================================================
// Storage is split by dtype: numeric kinds (float, int, bool) share a
// float64 slice, strings and times get their own. A parallel null mask
// marks missing cells. Series are immutable once built; every transform
// returns a new Series.
// ============================================================================

// DType is the storage type of a Series.
type DType int

const (
	Float DType = iota
	Int
	Bool
	String
	Time
)

// String returns the pandas-style dtype name.
func (d DType) String() string {
	switch d {
	case Float:
		return "float64"
	case Int:
		return "int64"
	case Bool:
		return "bool"
	case String:
		return "object"
	case Time:
		return "datetime64"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether values of this dtype can be aggregated.
func (d DType) IsNumeric() bool {
	return d == Float || d == Int
}

// Series is a named column of a DataFrame.
type Series struct {
	name  string
	dtype DType
	nums  []float64
	strs  []string
	times []time.Time
	null  []bool
}

// nullTokens are the text values read as missing.
var nullTokens = map[string]bool{
	"": true, "null": true, "NULL": true, "Null": true,
	"N/A": true, "n/a": true, "NA": true,
	"NaN": true, "nan": true, "None": true,
}

// IsNullToken reports whether s reads as a missing value.
func IsNullToken(s string) bool {
	return nullTokens[strings.TrimSpace(s)]
}

var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// ParseTime tries the supported date layouts in order.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewSeries builds a Series from a typed slice. Supported inputs are
// []float64, []int, []int64, []string, []bool, []time.Time and []any.
// In a []any, nil marks a null and the dtype is inferred from the rest.
// NaN floats are stored as nulls.
func NewSeries(name string, values any) (*Series, error) {
	switch v := values.(type) {
	case []float64:
		s := newNumeric(name, Float, len(v))
		for i, f := range v {
			if math.IsNaN(f) {
				s.null[i] = true
				continue
			}
			s.nums[i] = f
		}
		return s, nil
	case []int:
		s := newNumeric(name, Int, len(v))
		for i, n := range v {
			s.nums[i] = float64(n)
		}
		return s, nil
	case []int64:
		s := newNumeric(name, Int, len(v))
		for i, n := range v {
			s.nums[i] = float64(n)
		}
		return s, nil
	case []bool:
		s := newNumeric(name, Bool, len(v))
		for i, b := range v {
			if b {
				s.nums[i] = 1
			}
		}
		return s, nil
	case []string:
		s := &Series{name: name, dtype: String, strs: make([]string, len(v)), null: make([]bool, len(v))}
		copy(s.strs, v)
		return s, nil
	case []time.Time:
		s := &Series{name: name, dtype: Time, times: make([]time.Time, len(v)), null: make([]bool, len(v))}
		for i, t := range v {
			if t.IsZero() {
				s.null[i] = true
				continue
			}
			s.times[i] = t
		}
		return s, nil
	case []any:
		return fromAny(name, v)
	default:
		return nil, fmt.Errorf("series %q: unsupported value type %T", name, values)
	}
}

func newNumeric(name string, dtype DType, n int) *Series {
	return &Series{name: name, dtype: dtype, nums: make([]float64, n), null: make([]bool, n)}
}

// fromAny infers the dtype of a heterogeneous slice. Integers stay Int
// unless a float appears. Mixed kinds fall back to String. An all-string
// slice goes through text inference so "42" becomes an Int.
func fromAny(name string, values []any) (*Series, error) {
	var sawInt, sawFloat, sawBool, sawString, sawTime bool
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			sawInt = true
		case float32, float64:
			sawFloat = true
		case bool:
			sawBool = true
		case string, []byte:
			sawString = true
		case time.Time:
			sawTime = true
		default:
			sawString = true
		}
	}

	kinds := 0
	for _, b := range []bool{sawInt || sawFloat, sawBool, sawString, sawTime} {
		if b {
			kinds++
		}
	}

	n := len(values)
	switch {
	case kinds == 0:
		s := newNumeric(name, Float, n)
		for i := range s.null {
			s.null[i] = true
		}
		return s, nil

	case kinds > 1 || sawString:
		raw := make([]string, n)
		for i, v := range values {
			if v == nil {
				continue
			}
			raw[i] = formatAny(v)
		}
		if kinds > 1 {
			s := &Series{name: name, dtype: String, strs: raw, null: make([]bool, n)}
			for i, v := range values {
				s.null[i] = v == nil
			}
			return s, nil
		}
		return InferSeries(name, raw), nil

	case sawTime:
		s := &Series{name: name, dtype: Time, times: make([]time.Time, n), null: make([]bool, n)}
		for i, v := range values {
			if v == nil {
				s.null[i] = true
				continue
			}
			s.times[i] = v.(time.Time)
		}
		return s, nil

	case sawBool:
		s := newNumeric(name, Bool, n)
		for i, v := range values {
			if v == nil {
				s.null[i] = true
				continue
			}
			if v.(bool) {
				s.nums[i] = 1
			}
		}
		return s, nil

	default:
		dtype := Int
		if sawFloat {
			dtype = Float
		}
		s := newNumeric(name, dtype, n)
		for i, v := range values {
			f, ok := toFloat(v)
			if !ok || math.IsNaN(f) {
				s.null[i] = true
				continue
			}
			s.nums[i] = f
		}
		return s, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func formatAny(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return formatTime(x)
	default:
		return fmt.Sprint(x)
	}
}

// InferSeries parses raw text into the narrowest dtype every non-null value
// fits: bool (true/false), int, float, time, and otherwise string.
// A column with no non-null values is an all-null float column.
func InferSeries(name string, raw []string) *Series {
	n := len(raw)
	null := make([]bool, n)
	values := make([]string, n)
	nonNull := 0
	for i, r := range raw {
		v := strings.TrimSpace(r)
		if IsNullToken(v) {
			null[i] = true
			continue
		}
		values[i] = v
		nonNull++
	}

	if nonNull == 0 {
		s := newNumeric(name, Float, n)
		copy(s.null, null)
		return s
	}

	if allParse(values, null, isBoolText) {
		s := newNumeric(name, Bool, n)
		copy(s.null, null)
		for i, v := range values {
			if !null[i] && strings.EqualFold(v, "true") {
				s.nums[i] = 1
			}
		}
		return s
	}

	if allParse(values, null, func(v string) bool { _, err := strconv.ParseInt(v, 10, 64); return err == nil }) {
		s := newNumeric(name, Int, n)
		copy(s.null, null)
		for i, v := range values {
			if !null[i] {
				x, _ := strconv.ParseInt(v, 10, 64)
				s.nums[i] = float64(x)
			}
		}
		return s
	}

	if allParse(values, null, func(v string) bool { _, err := strconv.ParseFloat(v, 64); return err == nil }) {
		s := newNumeric(name, Float, n)
		copy(s.null, null)
		for i, v := range values {
			if !null[i] {
				x, _ := strconv.ParseFloat(v, 64)
				if math.IsNaN(x) {
					s.null[i] = true
					continue
				}
				s.nums[i] = x
			}
		}
		return s
	}

	if allParse(values, null, func(v string) bool { _, ok := ParseTime(v); return ok }) {
		s := &Series{name: name, dtype: Time, times: make([]time.Time, n), null: null}
		for i, v := range values {
			if !null[i] {
				s.times[i], _ = ParseTime(v)
			}
		}
		return s
	}

	return &Series{name: name, dtype: String, strs: values, null: null}
}

func isBoolText(v string) bool {
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "false")
}

func allParse(values []string, null []bool, ok func(string) bool) bool {
	for i, v := range values {
		if null[i] {
			continue
		}
		if !ok(v) {
			return false
		}
	}
	return true
}

// ============================================================================
// ACCESSORS
// ============================================================================

// Name returns the column name.
func (s *Series) Name() string { return s.name }

// DType returns the storage type.
func (s *Series) DType() DType { return s.dtype }

// Len returns the number of cells, nulls included.
func (s *Series) Len() int { return len(s.null) }

// IsNull reports whether cell i is missing.
func (s *Series) IsNull(i int) bool { return s.null[i] }

// NullCount returns the number of missing cells.
func (s *Series) NullCount() int {
	n := 0
	for _, isNull := range s.null {
		if isNull {
			n++
		}
	}
	return n
}

// Count returns the number of non-null cells.
func (s *Series) Count() int { return s.Len() - s.NullCount() }

// Float returns cell i as a float64. ok is false for nulls and
// non-numeric dtypes. Bools read as 0/1.
func (s *Series) Float(i int) (float64, bool) {
	if s.null[i] || s.nums == nil {
		return 0, false
	}
	return s.nums[i], true
}

// Time returns cell i of a Time series.
func (s *Series) Time(i int) (time.Time, bool) {
	if s.null[i] || s.dtype != Time {
		return time.Time{}, false
	}
	return s.times[i], true
}

// Value returns cell i as a Go value: float64, int64, bool, string,
// time.Time, or nil for nulls.
func (s *Series) Value(i int) any {
	if s.null[i] {
		return nil
	}
	switch s.dtype {
	case Float:
		return s.nums[i]
	case Int:
		return int64(s.nums[i])
	case Bool:
		return s.nums[i] != 0
	case Time:
		return s.times[i]
	default:
		return s.strs[i]
	}
}

// Values returns every cell as Value would.
func (s *Series) Values() []any {
	out := make([]any, s.Len())
	for i := range out {
		out[i] = s.Value(i)
	}
	return out
}

// Format renders cell i as text. Nulls render as "".
func (s *Series) Format(i int) string {
	if s.null[i] {
		return ""
	}
	switch s.dtype {
	case Float:
		return strconv.FormatFloat(s.nums[i], 'f', -1, 64)
	case Int:
		return strconv.FormatInt(int64(s.nums[i]), 10)
	case Bool:
		return strconv.FormatBool(s.nums[i] != 0)
	case Time:
		return formatTime(s.times[i])
	default:
		return s.strs[i]
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Floats returns the non-null numeric values in row order.
func (s *Series) Floats() []float64 {
	if s.nums == nil {
		return nil
	}
	out := make([]float64, 0, s.Len())
	for i, v := range s.nums {
		if !s.null[i] {
			out = append(out, v)
		}
	}
	return out
}

// Strings returns every cell rendered by Format.
func (s *Series) Strings() []string {
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.Format(i)
	}
	return out
}

// Unique returns distinct non-null values as text, in first-seen order.
func (s *Series) Unique() []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < s.Len(); i++ {
		if s.null[i] {
			continue
		}
		v := s.Format(i)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// NUnique returns the number of distinct non-null values.
func (s *Series) NUnique() int { return len(s.Unique()) }

// Rename returns a copy of the series under a new name.
func (s *Series) Rename(name string) *Series {
	c := *s
	c.name = name
	return &c
}

// Take returns the cells at idx in order. An index of -1 yields a null.
func (s *Series) Take(idx []int) *Series {
	out := &Series{name: s.name, dtype: s.dtype, null: make([]bool, len(idx))}
	switch {
	case s.nums != nil:
		out.nums = make([]float64, len(idx))
	case s.dtype == Time:
		out.times = make([]time.Time, len(idx))
	default:
		out.strs = make([]string, len(idx))
	}
	for j, i := range idx {
		if i < 0 || s.null[i] {
			out.null[j] = true
			continue
		}
		switch {
		case s.nums != nil:
			out.nums[j] = s.nums[i]
		case s.dtype == Time:
			out.times[j] = s.times[i]
		default:
			out.strs[j] = s.strs[i]
		}
	}
	return out
}

// Map returns a new String series produced by fn over each non-null cell.
// The result is re-inferred so numeric text becomes numeric.
func (s *Series) Map(fn func(string) string) *Series {
	raw := make([]string, s.Len())
	for i := range raw {
		if s.null[i] {
			continue
		}
		raw[i] = fn(s.Format(i))
	}
	return InferSeries(s.name, raw)
}

// FillNull returns a copy with missing cells set to v. v must match the
// series kind: float64 for numeric, bool for Bool, string for String,
// time.Time for Time.
func (s *Series) FillNull(v any) (*Series, error) {
	if s.dtype == String {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("series %q: cannot fill string column with %T", s.name, v)
		}
		c := &Series{name: s.name, dtype: String, strs: make([]string, s.Len()), null: make([]bool, s.Len())}
		for i := range c.strs {
			c.strs[i] = s.strs[i]
			if s.null[i] {
				c.strs[i] = str
			}
		}
		return c, nil
	}

	values := s.Values()
	for i := range values {
		if values[i] == nil {
			values[i] = v
		}
	}
	filled, err := NewSeries(s.name, values)
	if err != nil {
		return nil, err
	}
	// Filling an int column with a whole float keeps it Int.
	if s.dtype == Int && filled.dtype == Float {
		if f, ok := v.(float64); ok && f == math.Trunc(f) {
			filled.dtype = Int
		}
	}
	return filled, nil
}

// AsFloat converts a numeric or bool series to Float.
func (s *Series) AsFloat() (*Series, error) {
	if s.nums == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotNumeric, s.name, s.dtype)
	}
	c := *s
	c.dtype = Float
	return &c, nil
}

// AsInt converts a numeric series whose values are all whole numbers.
func (s *Series) AsInt() (*Series, error) {
	if s.nums == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotNumeric, s.name, s.dtype)
	}
	for i, v := range s.nums {
		if !s.null[i] && v != math.Trunc(v) {
			return nil, fmt.Errorf("%s has non-integer value %v", s.name, v)
		}
	}
	c := *s
	c.dtype = Int
	return &c, nil
}
