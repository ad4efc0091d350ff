// Package quality scores the condition of a DataFrame and cleans it.
package quality

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/helpers"
)

const (
	// highMissingRatio marks a column as mostly empty.
	highMissingRatio = 0.5
	// categoryRatio is the largest distinct/non-null ratio suggested as a category.
	categoryRatio = 0.5
)

// Suggestion proposes a cheaper dtype for one column.
type Suggestion struct {
	Column  string `json:"column"`
	From    string `json:"from"`
	To      string `json:"to"`
	Reason  string `json:"reason"`
	Savings int64  `json:"savings"`
}

// Report is the outcome of Assess.
type Report struct {
	Rows             int            `json:"rows"`
	Columns          int            `json:"columns"`
	TotalCells       int            `json:"totalCells"`
	MissingCells     int            `json:"missingCells"`
	MissingPercent   float64        `json:"missingPercent"`
	MissingByColumn  map[string]int `json:"missingByColumn"`
	DuplicateRows    int            `json:"duplicateRows"`
	DuplicatePercent float64        `json:"duplicatePercent"`
	Suggestions      []Suggestion   `json:"suggestions"`
	EstimatedSavings int64          `json:"estimatedSavings"`
	Issues           []string       `json:"issues"`
	Score            float64        `json:"score"`
}

// Assess measures missing cells, duplicate rows and dtype waste in df.
// Score is 100 minus the missing and duplicate percentages minus two
// points per issue, clamped to [0, 100].
func Assess(df *frame.DataFrame) *Report {
	rows, cols := df.Shape()
	r := &Report{
		Rows:            rows,
		Columns:         cols,
		TotalCells:      rows * cols,
		MissingCells:    df.TotalNulls(),
		MissingByColumn: df.NullCounts(),
	}
	if r.TotalCells > 0 {
		r.MissingPercent = float64(r.MissingCells) / float64(r.TotalCells) * 100
	}

	if dup, err := df.Duplicated(); err == nil {
		for _, d := range dup {
			if d {
				r.DuplicateRows++
			}
		}
	}
	if rows > 0 {
		r.DuplicatePercent = float64(r.DuplicateRows) / float64(rows) * 100
	}
	if r.DuplicateRows > 0 {
		r.Issues = append(r.Issues, fmt.Sprintf("%d duplicate rows", r.DuplicateRows))
	}

	for i := 0; i < cols; i++ {
		s := df.ColumnAt(i)
		if rows > 0 && float64(s.NullCount())/float64(rows) > highMissingRatio {
			r.Issues = append(r.Issues, fmt.Sprintf("column %q is %.0f%% missing",
				s.Name(), float64(s.NullCount())/float64(rows)*100))
		}
		if rows > 1 && s.Count() == rows && s.NUnique() == 1 {
			r.Issues = append(r.Issues, fmt.Sprintf("column %q holds a single value", s.Name()))
		}
		if sg, ok := suggest(s); ok {
			r.Suggestions = append(r.Suggestions, sg)
			r.EstimatedSavings += sg.Savings
			if sg.To == frame.Float.String() {
				r.Issues = append(r.Issues, fmt.Sprintf("column %q holds numbers stored as text", s.Name()))
			}
		}
	}

	r.Score = math.Max(0, math.Min(100, 100-r.MissingPercent-r.DuplicatePercent-2*float64(len(r.Issues))))
	return r
}

func suggest(s *frame.Series) (Suggestion, bool) {
	n := int64(s.Len())
	switch s.DType() {
	case frame.String:
		if s.Count() == 0 {
			return Suggestion{}, false
		}
		if _, ok := parseNumericColumn(s); ok {
			return Suggestion{
				Column: s.Name(), From: s.DType().String(), To: frame.Float.String(),
				Reason:  "all values are numeric text",
				Savings: max(int64(0), s.MemoryUsage()-9*n),
			}, true
		}
		unique := s.Unique()
		if s.Count() >= 2 && float64(len(unique)) <= float64(s.Count())*categoryRatio {
			categorical := 5 * n
			for _, u := range unique {
				categorical += 16 + int64(len(u))
			}
			return Suggestion{
				Column: s.Name(), From: s.DType().String(), To: "category",
				Reason:  fmt.Sprintf("%d distinct values in %d rows", len(unique), s.Count()),
				Savings: max(int64(0), s.MemoryUsage()-categorical),
			}, true
		}
	case frame.Float:
		vals := s.Floats()
		if len(vals) == 0 {
			return Suggestion{}, false
		}
		for _, v := range vals {
			if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
				return Suggestion{}, false
			}
		}
		return Suggestion{
			Column: s.Name(), From: s.DType().String(), To: frame.Int.String(),
			Reason:  "all values are whole numbers",
			Savings: 4 * n,
		}, true
	}
	return Suggestion{}, false
}

// parseNumericText reads numbers written with currency symbols, thousands
// separators, a trailing percent sign or accounting parentheses.
func parseNumericText(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = v[1 : len(v)-1]
	}
	if strings.HasPrefix(v, "-") {
		neg = !neg
		v = v[1:]
	}
	v = strings.TrimLeft(v, "$€£¥₹ ")
	v = strings.TrimSuffix(v, "%")
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// parseNumericColumn converts a String series when every non-null cell is
// numeric text.
func parseNumericColumn(s *frame.Series) (*frame.Series, bool) {
	if s.DType() != frame.String || s.Count() == 0 {
		return nil, false
	}
	vals := make([]float64, s.Len())
	for i := range vals {
		if s.IsNull(i) {
			vals[i] = math.NaN()
			continue
		}
		f, ok := parseNumericText(s.Format(i))
		if !ok {
			return nil, false
		}
		vals[i] = f
	}
	out, err := frame.NewSeries(s.Name(), vals)
	if err != nil {
		return nil, false
	}
	return out, true
}

// String renders the report as plain text.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Data quality score: %.1f/100\n", r.Score)
	fmt.Fprintf(&b, "Shape: %d rows x %d columns\n", r.Rows, r.Columns)
	fmt.Fprintf(&b, "Missing cells: %d (%.1f%%)\n", r.MissingCells, r.MissingPercent)
	fmt.Fprintf(&b, "Duplicate rows: %d (%.1f%%)\n", r.DuplicateRows, r.DuplicatePercent)

	var missing []string
	for _, name := range sortedByMissing(r.MissingByColumn) {
		missing = append(missing, fmt.Sprintf("  %s: %d", name, r.MissingByColumn[name]))
	}
	if len(missing) > 0 {
		b.WriteString("\nMissing by column:\n")
		b.WriteString(strings.Join(missing, "\n") + "\n")
	}

	if len(r.Suggestions) > 0 {
		b.WriteString("\nType suggestions:\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "  %s: %s -> %s (%s, saves ~%s)\n", s.Column, s.From, s.To, s.Reason, helpers.FormatBytes(s.Savings))
		}
		fmt.Fprintf(&b, "  estimated savings: %s\n", helpers.FormatBytes(r.EstimatedSavings))
	}

	if len(r.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, issue := range r.Issues {
			b.WriteString("  - " + issue + "\n")
		}
	}
	return b.String()
}

// sortedByMissing lists columns with missing cells, most missing first.
func sortedByMissing(m map[string]int) []string {
	var names []string
	for name, n := range m {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if m[names[i]] != m[names[j]] {
			return m[names[i]] > m[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
