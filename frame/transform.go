package frame

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spektr-org/asktable/helpers"
)

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// CleanColumnName normalises one header: snake_case, only [a-z0-9_], and a
// "col_" prefix when it would start with a digit. Empty results return "".
func CleanColumnName(name string) string {
	s := helpers.ToSnakeCase(name)
	s = nonIdent.ReplaceAllString(s, "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "col_" + s
	}
	return s
}

// CleanColumns renames every column with CleanColumnName. Empty names
// become unnamed_<i>; collisions get the lowest free _2, _3 suffix that no
// other cleaned name uses.
func (df *DataFrame) CleanColumns() (*DataFrame, error) {
	bases := make([]string, len(df.columns))
	taken := make(map[string]bool, len(df.columns))
	for i, s := range df.columns {
		name := CleanColumnName(s.name)
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		bases[i] = name
		taken[name] = true
	}

	series := make([]*Series, len(df.columns))
	used := make(map[string]bool, len(df.columns))
	for i, s := range df.columns {
		name := bases[i]
		if used[name] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", bases[i], n)
				if !used[candidate] && !taken[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		series[i] = s.Rename(name)
	}
	out, err := New(series...)
	if err != nil {
		return nil, fmt.Errorf("failed to clean column names: %w", err)
	}
	out.name = df.name
	out.rows = df.rows
	return out, nil
}

// Merge joins other onto df by equal values of the on column. how is
// "inner" or "left". Other overlapping columns get _x/_y suffixes.
func (df *DataFrame) Merge(other *DataFrame, on, how string) (*DataFrame, error) {
	if how == "" {
		how = "inner"
	}
	if how != "inner" && how != "left" {
		return nil, fmt.Errorf("unsupported merge %q (want inner or left)", how)
	}
	leftKey, err := df.Column(on)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	rightKey, err := other.Column(on)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}

	lookup := make(map[string][]int, other.rows)
	for j := 0; j < other.rows; j++ {
		if rightKey.null[j] {
			continue
		}
		k := rightKey.Format(j)
		lookup[k] = append(lookup[k], j)
	}

	var leftIdx, rightIdx []int
	for i := 0; i < df.rows; i++ {
		var matches []int
		if !leftKey.null[i] {
			matches = lookup[leftKey.Format(i)]
		}
		if len(matches) == 0 {
			if how == "left" {
				leftIdx = append(leftIdx, i)
				rightIdx = append(rightIdx, -1)
			}
			continue
		}
		for _, j := range matches {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
		}
	}

	series := make([]*Series, 0, len(df.columns)+len(other.columns)-1)
	for _, s := range df.columns {
		c := s.Take(leftIdx)
		if s.name != on && other.HasColumn(s.name) {
			c = c.Rename(s.name + "_x")
		}
		series = append(series, c)
	}
	for _, s := range other.columns {
		if s.name == on {
			continue
		}
		c := s.Take(rightIdx)
		if df.HasColumn(s.name) {
			c = c.Rename(s.name + "_y")
		}
		series = append(series, c)
	}
	out, err := New(series...)
	if err != nil {
		return nil, err
	}
	out.name = df.name
	out.rows = len(leftIdx)
	return out, nil
}
