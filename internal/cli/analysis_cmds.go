package cli

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/spektr-org/asktable/quality"
	"github.com/spektr-org/asktable/query"
	"github.com/spektr-org/asktable/stats"
)

// ============================================================================
// ANALYSIS COMMANDS — clean, quality, stats, analyze
// ============================================================================

func newCleanCommand() *cobra.Command {
	var (
		aggressive bool
		outPath    string
	)
	cmd := &cobra.Command{
		Use:   "clean [FILE]",
		Short: "Clean column names, types, duplicates and missing values",
		Long: `clean normalizes column names, trims text, converts numbers stored as
text, drops duplicate rows and fills missing values (median for numbers,
most frequent value for text).

--aggressive additionally drops columns that are mostly empty and caps
outliers to the 1.5 x IQR fences.

Each step is reported on stderr. The cleaned data goes to --out, or to
stdout in the selected output format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			df, err := loadFrame(cmd, args)
			if err != nil {
				return err
			}
			c := quality.NewCleaner(df, quality.WithLogger(a.log))
			cleaned, err := c.AutoClean(aggressive)
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			for _, line := range c.Log() {
				_, _ = fmt.Fprintf(errOut, "- %s\n", line)
			}

			if outPath == "" {
				return renderFrame(cmd.OutOrStdout(), cleaned, outputFormat(cmd))
			}
			if err := cleaned.WriteCSVFile(outPath); err != nil {
				return err
			}
			rows, cols := cleaned.Shape()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows x %d columns to %s\n", rows, cols, outPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&aggressive, "aggressive", false, "also drop sparse columns and cap outliers")
	cmd.Flags().StringVar(&outPath, "out", "", "write the cleaned data to this CSV file")
	return cmd
}

func newQualityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quality [FILE]",
		Short: "Score data quality and suggest type optimizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := loadFrame(cmd, args)
			if err != nil {
				return err
			}
			r := quality.Assess(df)
			if outputFormat(cmd) == formatJSON {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), r.String())
			return err
		},
	}
}

func newStatsCommand() *cobra.Command {
	var (
		outliers string
		group    string
		value    string
		compare  []string
	)
	cmd := &cobra.Command{
		Use:   "stats [FILE]",
		Short: "Descriptive statistics, correlations, outliers and normality",
		Example: `  asktable stats sales.csv
  asktable stats sales.csv --outliers zscore
  asktable stats sales.csv --group region --value revenue --compare North,South`,
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := loadFrame(cmd, args)
			if err != nil {
				return err
			}
			an := stats.New(df)
			out := cmd.OutOrStdout()
			asJSON := outputFormat(cmd) == formatJSON

			switch {
			case group != "":
				if value == "" || len(compare) != 2 {
					return fmt.Errorf("--group needs --value and --compare with exactly two groups")
				}
				res, err := an.TTest(group, value, compare[0], compare[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, jsonValue(reflect.ValueOf(res)))
				}
				renderTTest(out, res)
				return nil

			case cmd.Flags().Changed("outliers"):
				res, err := an.Outliers(outliers)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, jsonValue(reflect.ValueOf(res)))
				}
				renderOutliers(out, res)
				return nil
			}

			if !asJSON {
				_, err := fmt.Fprint(out, an.Report())
				return err
			}
			bundle := map[string]any{
				"descriptive": an.Descriptive(),
				"normality":   an.Normality(),
			}
			if corr, err := an.Correlations(); err == nil {
				bundle["correlations"] = corr
			}
			if o, err := an.Outliers("iqr"); err == nil {
				bundle["outliers"] = o
			}
			return writeJSON(out, jsonValue(reflect.ValueOf(bundle)))
		},
	}
	cmd.Flags().StringVar(&outliers, "outliers", "iqr", "only detect outliers with this method (iqr|zscore)")
	cmd.Flags().StringVar(&group, "group", "", "t-test: column that splits the rows into groups")
	cmd.Flags().StringVar(&value, "value", "", "t-test: numeric column to compare")
	cmd.Flags().StringSliceVar(&compare, "compare", nil, "t-test: the two group values to compare")
	return cmd
}

func renderTTest(w io.Writer, r *stats.TTestResult) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Welch t-test: %s by %s", r.ValueColumn, r.GroupColumn))
	t.AppendHeader(table.Row{"Group", "N", "Mean"})
	t.AppendRow(table.Row{r.Group1, r.N1, fmt.Sprintf("%.4g", r.Mean1)})
	t.AppendRow(table.Row{r.Group2, r.N2, fmt.Sprintf("%.4g", r.Mean2)})
	t.Render()

	verdict := "not significant"
	if r.Significant {
		verdict = "significant"
	}
	_, _ = fmt.Fprintf(w, "t = %.4f, df = %.2f, p = %.4g (%s at p < %.2f)\n", r.T, r.DF, r.PValue, verdict, stats.Significance)
}

func renderOutliers(w io.Writer, results []stats.OutlierResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Column", "Method", "Outliers", "%", "Lower", "Upper"})
	for _, o := range results {
		t.AppendRow(table.Row{o.Column, o.Method, o.Count, fmt.Sprintf("%.1f", o.Percentage), fmt.Sprintf("%.4g", o.Lower), fmt.Sprintf("%.4g", o.Upper)})
	}
	t.Render()
}

// jsonValue converts v into maps, slices and scalars that encoding/json
// accepts. NaN and infinities become null.
func jsonValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return jsonValue(v.Elem())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = jsonValue(v.Index(i))
		}
		return out
	case reflect.Map:
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = jsonValue(iter.Value())
		}
		return out
	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			out[name] = jsonValue(v.Field(i))
		}
		return out
	}
	return v.Interface()
}

func newAnalyzeCommand() *cobra.Command {
	var listExamples bool
	cmd := &cobra.Command{
		Use:   "analyze QUESTION [FILE...]",
		Short: "Show how a question is categorized, without answering it",
		Long: `analyze validates a question and reports its keyword categories, the
suggested aggregation and chart, and the columns it mentions when data
files are given. No language model is contacted.

With --examples it lists sample questions per category instead.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if listExamples {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if listExamples {
				return renderExamples(cmd, out)
			}

			var columns []string
			if len(args) > 1 || cmd.Flags().Changed("sql") {
				frames, err := loadFrames(cmd, args[1:])
				if err != nil {
					return err
				}
				for _, df := range frames {
					columns = append(columns, df.Columns()...)
				}
			}

			q := args[0]
			v := query.Validate(q, columns)
			an := query.Analyze(q, columns...)
			if outputFormat(cmd) == formatJSON {
				return writeJSON(out, map[string]any{"validation": v, "analysis": an})
			}
			renderAnalysis(out, v, an)
			return nil
		},
	}
	cmd.Flags().BoolVar(&listExamples, "examples", false, "list example questions per category")
	return cmd
}

func renderAnalysis(w io.Writer, v query.Validation, an query.Analysis) {
	if !v.IsValid {
		for _, e := range v.Errors {
			_, _ = fmt.Fprintf(w, "error: %s\n", e)
		}
		return
	}
	for _, warn := range v.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warn)
	}

	names := make([]string, 0, len(an.Categories))
	for name := range an.Categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := an.Categories[names[i]], an.Categories[names[j]]
		if ci.Confidence != cj.Confidence {
			return ci.Confidence > cj.Confidence
		}
		return names[i] < names[j]
	})

	t := newTable(w)
	t.AppendHeader(table.Row{"Category", "Confidence", "Keywords"})
	for _, name := range names {
		c := an.Categories[name]
		t.AppendRow(table.Row{name, fmt.Sprintf("%.2f", c.Confidence), strings.Join(c.Keywords, ", ")})
	}
	t.Render()

	_, _ = fmt.Fprintf(w, "primary category:      %s\n", an.PrimaryCategory)
	_, _ = fmt.Fprintf(w, "suggested aggregation: %s\n", an.SuggestedAggregation)
	if an.SuggestedChart != "" {
		_, _ = fmt.Fprintf(w, "suggested chart:       %s\n", an.SuggestedChart)
	}
	if an.IsRatio {
		_, _ = fmt.Fprintln(w, "ratio question:        yes")
	}
	if len(an.MentionedColumns) > 0 {
		_, _ = fmt.Fprintf(w, "mentioned columns:     %s\n", strings.Join(an.MentionedColumns, ", "))
	}

	_, _ = fmt.Fprintln(w, "\nsimilar questions:")
	for _, ex := range query.Examples(an.PrimaryCategory) {
		_, _ = fmt.Fprintf(w, "  - %s\n", ex)
	}
}

func renderExamples(cmd *cobra.Command, w io.Writer) error {
	all := make(map[string][]string)
	for _, c := range query.Categories() {
		all[c] = query.Examples(c)
	}
	if outputFormat(cmd) == formatJSON {
		return writeJSON(w, all)
	}
	for _, c := range query.Categories() {
		_, _ = fmt.Fprintf(w, "%s:\n", c)
		for _, ex := range all[c] {
			_, _ = fmt.Fprintf(w, "  - %s\n", ex)
		}
	}
	return nil
}
