package quality

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/helpers"
)

// ============================================================================
// CLEANER
// ============================================================================

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger sets the logger that mirrors each cleaning step at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cleaner) { c.log = log }
}

// Cleaner applies automatic fixes to a DataFrame and records what it did.
type Cleaner struct {
	df  *frame.DataFrame
	ops []string
	log zerolog.Logger
}

// NewCleaner creates a Cleaner for df. df itself is never modified.
func NewCleaner(df *frame.DataFrame, opts ...Option) *Cleaner {
	c := &Cleaner{df: df, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Log returns the operations performed so far.
func (c *Cleaner) Log() []string {
	return append([]string(nil), c.ops...)
}

func (c *Cleaner) record(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.ops = append(c.ops, msg)
	c.log.Debug().Str("frame", c.df.Name()).Msg(msg)
}

// AutoClean cleans column names, trims text, converts numeric-looking text,
// drops duplicate rows and fills missing values (median for numbers, mode
// for text). Aggressive mode also drops columns more than half empty
// before filling and caps values outside the 1.5·IQR fences.
func (c *Cleaner) AutoClean(aggressive bool) (*frame.DataFrame, error) {
	df, err := c.df.CleanColumns()
	if err != nil {
		return nil, err
	}
	if renamed := countRenamed(c.df, df); renamed > 0 {
		c.record("cleaned %d column names", renamed)
	}

	df, err = c.normalizeText(df)
	if err != nil {
		return nil, err
	}

	before := df.Len()
	df, err = df.DropDuplicates()
	if err != nil {
		return nil, err
	}
	if dropped := before - df.Len(); dropped > 0 {
		c.record("dropped %d duplicate rows", dropped)
	}

	if aggressive {
		if df, err = c.dropSparse(df); err != nil {
			return nil, err
		}
	}

	if df, err = c.fillMissing(df); err != nil {
		return nil, err
	}

	if aggressive {
		if df, err = c.capOutliers(df); err != nil {
			return nil, err
		}
	}

	c.df = df
	return df, nil
}

func countRenamed(before, after *frame.DataFrame) int {
	n := 0
	for i, name := range before.Columns() {
		if after.Columns()[i] != name {
			n++
		}
	}
	return n
}

// normalizeText trims text columns and converts the ones holding numbers.
func (c *Cleaner) normalizeText(df *frame.DataFrame) (*frame.DataFrame, error) {
	trimmed := 0
	for _, name := range df.Columns() {
		s, _ := df.Column(name)
		if s.DType() != frame.String {
			continue
		}

		if needsTrim(s) {
			s = s.Map(strings.TrimSpace)
			trimmed++
		}
		if num, ok := parseNumericColumn(s); ok {
			s = num
			c.record("converted %q to numeric", name)
		}

		var err error
		if df, err = df.WithColumn(s); err != nil {
			return nil, err
		}
	}
	if trimmed > 0 {
		c.record("trimmed whitespace in %d text columns", trimmed)
	}
	return df, nil
}

func needsTrim(s *frame.Series) bool {
	for i := 0; i < s.Len(); i++ {
		if v := s.Format(i); v != strings.TrimSpace(v) {
			return true
		}
	}
	return false
}

func (c *Cleaner) dropSparse(df *frame.DataFrame) (*frame.DataFrame, error) {
	var sparse []string
	for _, name := range df.Columns() {
		s, _ := df.Column(name)
		if df.Len() > 0 && float64(s.NullCount())/float64(df.Len()) > highMissingRatio {
			sparse = append(sparse, name)
		}
	}
	if len(sparse) == 0 {
		return df, nil
	}
	c.record("dropped %d mostly empty columns: %s", len(sparse), strings.Join(sparse, ", "))
	return df.Drop(sparse...)
}

func (c *Cleaner) fillMissing(df *frame.DataFrame) (*frame.DataFrame, error) {
	for _, name := range df.Columns() {
		s, _ := df.Column(name)
		missing := s.NullCount()
		if missing == 0 || missing == s.Len() {
			continue
		}

		var fill any
		var desc string
		switch {
		case s.DType().IsNumeric():
			median := frame.Median(s.Floats())
			fill, desc = median, "median "+helpers.FormatNumber(median)
		case s.DType() == frame.String:
			mode := modeOf(s)
			fill, desc = mode, fmt.Sprintf("mode %q", mode)
		default:
			continue
		}

		filled, err := s.FillNull(fill)
		if err != nil {
			return nil, err
		}
		if df, err = df.WithColumn(filled); err != nil {
			return nil, err
		}
		c.record("filled %d missing values in %q with %s", missing, name, desc)
	}
	return df, nil
}

// modeOf returns the most frequent value. Ties go to the first seen.
func modeOf(s *frame.Series) string {
	counts := make(map[string]int)
	best, bestN := "", 0
	for i := 0; i < s.Len(); i++ {
		if !s.IsNull(i) {
			counts[s.Format(i)]++
		}
	}
	for _, v := range s.Unique() {
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

func (c *Cleaner) capOutliers(df *frame.DataFrame) (*frame.DataFrame, error) {
	for _, name := range df.NumericColumns() {
		s, _ := df.Column(name)
		vals := s.Floats()
		if len(vals) < 4 {
			continue
		}
		sorted := frame.Sorted(vals)
		q1, q3 := frame.Quantile(sorted, 0.25), frame.Quantile(sorted, 0.75)
		lower, upper := q1-1.5*(q3-q1), q3+1.5*(q3-q1)

		capped := 0
		out := make([]any, s.Len())
		for i := range out {
			v, ok := s.Float(i)
			switch {
			case !ok:
				continue
			case v < lower:
				v = lower
				capped++
			case v > upper:
				v = upper
				capped++
			}
			out[i] = v
		}
		if capped == 0 {
			continue
		}

		ns, err := frame.NewSeries(name, out)
		if err != nil {
			return nil, err
		}
		if df, err = df.WithColumn(ns); err != nil {
			return nil, err
		}
		c.record("capped %d outliers in %q to [%s, %s]", capped, name,
			helpers.FormatNumber(lower), helpers.FormatNumber(upper))
	}
	return df, nil
}
