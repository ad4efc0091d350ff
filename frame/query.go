package frame

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// QUERY — boolean row filter expressions
// ============================================================================
// Grammar (no parentheses; "and" binds tighter than "or"):
//
//	expr   := term { ("or" | "|") term }
//	term   := clause { ("and" | "&") clause }
//	clause := column op value
//	op     := == != > >= < <=
//
// Column names containing spaces go in backticks. Values may be quoted.
// Null cells never satisfy a clause.
// ============================================================================

var clauseRe = regexp.MustCompile("^\\s*(`[^`]+`|[A-Za-z_][A-Za-z0-9_.]*)\\s*(==|!=|>=|<=|>|<|=)\\s*(.+?)\\s*$")

type clause struct {
	col   *Series
	op    string
	num   float64
	str   string
	when  time.Time
	truth bool
}

// Query returns the rows matching expr, e.g. `age > 30 and city == "Paris"`.
func (df *DataFrame) Query(expr string) (*DataFrame, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidQuery)
	}

	var disjuncts [][]clause
	for _, term := range splitOutsideQuotes(expr, " or ", " | ") {
		var conj []clause
		for _, raw := range splitOutsideQuotes(term, " and ", " & ") {
			c, err := df.parseClause(raw)
			if err != nil {
				return nil, err
			}
			conj = append(conj, c)
		}
		disjuncts = append(disjuncts, conj)
	}

	return df.Filter(func(i int) bool {
		for _, conj := range disjuncts {
			ok := true
			for _, c := range conj {
				if !c.match(i) {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
		return false
	}), nil
}

func (df *DataFrame) parseClause(raw string) (clause, error) {
	m := clauseRe.FindStringSubmatch(raw)
	if m == nil {
		return clause{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidQuery, strings.TrimSpace(raw))
	}
	name := strings.Trim(m[1], "`")
	col, err := df.Column(name)
	if err != nil {
		return clause{}, err
	}
	op := m[2]
	if op == "=" {
		op = "=="
	}
	value := unquote(m[3])

	c := clause{col: col, op: op}
	switch col.dtype {
	case Float, Int:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return clause{}, fmt.Errorf("%w: %s is numeric, got %q", ErrInvalidQuery, name, value)
		}
		c.num = f
	case Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return clause{}, fmt.Errorf("%w: %s is boolean, got %q", ErrInvalidQuery, name, value)
		}
		if op != "==" && op != "!=" {
			return clause{}, fmt.Errorf("%w: %s only supports == and !=", ErrInvalidQuery, name)
		}
		c.truth = b
	case Time:
		t, ok := ParseTime(value)
		if !ok {
			return clause{}, fmt.Errorf("%w: %s is a date, got %q", ErrInvalidQuery, name, value)
		}
		c.when = t
	default:
		c.str = value
	}
	return c, nil
}

func (c clause) match(i int) bool {
	s := c.col
	if s.null[i] {
		return false
	}
	var cmp int
	switch s.dtype {
	case Float, Int:
		switch v := s.nums[i]; {
		case v < c.num:
			cmp = -1
		case v > c.num:
			cmp = 1
		}
	case Bool:
		eq := (s.nums[i] != 0) == c.truth
		if c.op == "==" {
			return eq
		}
		return !eq
	case Time:
		cmp = s.times[i].Compare(c.when)
	default:
		cmp = strings.Compare(s.strs[i], c.str)
	}

	switch c.op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	default:
		return cmp <= 0
	}
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// splitOutsideQuotes splits s on any of seps (case-insensitive), ignoring
// separators inside single, double or backtick quotes.
func splitOutsideQuotes(s string, seps ...string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		if ch == '"' || ch == '\'' || ch == '`' {
			quote = ch
			continue
		}
		for _, sep := range seps {
			if i+len(sep) <= len(s) && strings.EqualFold(s[i:i+len(sep)], sep) {
				parts = append(parts, s[start:i])
				start = i + len(sep)
				i = start - 1
				break
			}
		}
	}
	return append(parts, s[start:])
}
