package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Granularity of a parsed period value.
type Granularity int

const (
	GranularityYear Granularity = iota
	GranularityQuarter
	GranularityMonth
	GranularityDay
)

// Period is a calendar bucket parsed from a dimension value.
type Period struct {
	Year        int
	Month       int // 1-12; first month of the quarter for quarter values
	Day         int
	Granularity Granularity
}

var (
	dayLayouts = []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"01/02/2006",
	}
	monthLayouts = []string{"Jan-2006", "2006-01", "January 2006", "Jan 2006", "January-2006"}

	yearRe    = regexp.MustCompile(`^\d{4}$`)
	quarterRe = regexp.MustCompile(`(?i)^(?:q([1-4])[\s-]?(\d{4})|(\d{4})[\s-]?q([1-4]))$`)
)

// ParsePeriod recognises days (2006-01-02 and common timestamp forms),
// months (Jan-2006, 2006-01), quarters (Q1-2006, 2006-Q1) and years (2006).
func ParsePeriod(s string) (Period, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, false
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Granularity: GranularityDay}, true
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: t.Year(), Month: int(t.Month()), Granularity: GranularityMonth}, true
		}
	}
	if m := quarterRe.FindStringSubmatch(s); m != nil {
		q, year := m[1], m[2]
		if q == "" {
			q, year = m[4], m[3]
		}
		qi, _ := strconv.Atoi(q)
		yi, _ := strconv.Atoi(year)
		return Period{Year: yi, Month: (qi-1)*3 + 1, Granularity: GranularityQuarter}, true
	}
	if yearRe.MatchString(s) {
		y, _ := strconv.Atoi(s)
		return Period{Year: y, Granularity: GranularityYear}, true
	}
	return Period{}, false
}

// Order returns a sortable integer: YYYYMMDD with zeroes for missing parts.
func (p Period) Order() int {
	return p.Year*10000 + p.Month*100 + p.Day
}

// Quarter returns 1-4, or 0 for year-only periods.
func (p Period) Quarter() int {
	if p.Month == 0 {
		return 0
	}
	return (p.Month-1)/3 + 1
}

// YearLabel renders "2024".
func (p Period) YearLabel() string { return strconv.Itoa(p.Year) }

// QuarterLabel renders "Q1-2024". Year-only periods render as the year.
func (p Period) QuarterLabel() string {
	if p.Quarter() == 0 {
		return p.YearLabel()
	}
	return fmt.Sprintf("Q%d-%d", p.Quarter(), p.Year)
}

// MonthLabel renders "Jan-2024". Coarser periods fall back to their own label.
func (p Period) MonthLabel() string {
	switch p.Granularity {
	case GranularityYear:
		return p.YearLabel()
	case GranularityQuarter:
		return p.QuarterLabel()
	}
	return time.Month(p.Month).String()[:3] + "-" + strconv.Itoa(p.Year)
}

// Bucket is the label used for growth comparisons. Days roll up to months.
func (p Period) Bucket() string { return p.MonthLabel() }

// bucketOrder sorts a Bucket label.
func (p Period) bucketOrder() int {
	return p.Year*10000 + p.Month*100
}

// ParseMonthOrder converts "Jan-2026" to a sortable int (202601).
func ParseMonthOrder(monthStr string) int {
	t, err := time.Parse("Jan-2006", monthStr)
	if err != nil {
		return 0
	}
	return t.Year()*100 + int(t.Month())
}

func parseSortableDate(key string) int {
	if p, ok := ParsePeriod(key); ok {
		return p.Order()
	}
	return 0
}

// DetectTemporal returns the first dimension whose sampled non-empty values
// all parse as periods, or "" when none does.
func DetectTemporal(view RecordView) string {
	const sample = 50
	n := view.Len()
	if n > sample {
		n = sample
	}
	for _, key := range view.DimensionKeys() {
		if key == PeriodYear || key == PeriodQuarter || key == PeriodMonth {
			continue
		}
		seen, ok := 0, true
		for i := 0; i < n; i++ {
			v := view.Dimension(i, key)
			if v == "" {
				continue
			}
			if _, parsed := ParsePeriod(v); !parsed {
				ok = false
				break
			}
			seen++
		}
		if ok && seen > 0 {
			return key
		}
	}
	return ""
}
