package stats

import (
	"fmt"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Report renders every analysis as plain text tables.
func (a *Analyzer) Report() string {
	var b strings.Builder

	desc := a.Descriptive()
	if len(desc) == 0 {
		return "No numeric columns to analyze.\n"
	}

	b.WriteString("DESCRIPTIVE STATISTICS\n")
	t := newTable()
	t.AppendHeader(table.Row{"column", "count", "missing", "mean", "std", "min", "median", "max", "skew", "kurtosis"})
	for _, d := range desc {
		t.AppendRow(table.Row{d.Column, d.Count, d.Missing, num(d.Mean), num(d.Std), num(d.Min),
			num(d.Median), num(d.Max), num(d.Skewness), num(d.Kurtosis)})
	}
	b.WriteString(t.Render() + "\n\n")

	if corr, err := a.Correlations(); err == nil {
		b.WriteString("SIGNIFICANT CORRELATIONS (p < 0.05)\n")
		if len(corr.Significant) == 0 {
			b.WriteString("  none\n\n")
		} else {
			t = newTable()
			t.AppendHeader(table.Row{"a", "b", "r", "p", "n"})
			for _, p := range corr.Significant {
				t.AppendRow(table.Row{p.A, p.B, num(p.R), pvalue(p.PValue), p.N})
			}
			b.WriteString(t.Render() + "\n\n")
		}
	}

	if outliers, err := a.Outliers(MethodIQR); err == nil {
		b.WriteString("OUTLIERS (1.5 x IQR)\n")
		t = newTable()
		t.AppendHeader(table.Row{"column", "count", "%", "lower", "upper"})
		for _, o := range outliers {
			t.AppendRow(table.Row{o.Column, o.Count, fmt.Sprintf("%.1f", o.Percentage), num(o.Lower), num(o.Upper)})
		}
		b.WriteString(t.Render() + "\n\n")
	}

	b.WriteString("NORMALITY (Jarque-Bera)\n")
	t = newTable()
	t.AppendHeader(table.Row{"column", "n", "JB", "p", "assessment"})
	for _, n := range a.Normality() {
		t.AppendRow(table.Row{n.Column, n.N, num(n.JarqueBera), pvalue(n.PValue), n.Assessment})
	}
	b.WriteString(t.Render() + "\n")

	return b.String()
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4g", v)
}

func pvalue(p float64) string {
	switch {
	case math.IsNaN(p):
		return "-"
	case p < 0.0001:
		return "<0.0001"
	}
	return fmt.Sprintf("%.4f", p)
}
