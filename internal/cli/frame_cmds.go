package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/schema"
)

// ============================================================================
// FRAME COMMANDS — info, head, describe, groupby, query, schema
// ============================================================================

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info [FILE...]",
		Short: "Show columns, dtypes and null counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := loadFrames(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if outputFormat(cmd) == formatJSON {
				infos := make([]frame.Info, len(frames))
				for i, df := range frames {
					infos[i] = df.Info()
				}
				return writeJSON(out, infos)
			}
			for i, df := range frames {
				if i > 0 {
					_, _ = fmt.Fprintln(out)
				}
				if df.Name() != "" {
					_, _ = fmt.Fprintf(out, "== %s ==\n", df.Name())
				}
				_, _ = fmt.Fprint(out, df.Info().String())
			}
			return nil
		},
	}
}

func newHeadCommand() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "head [FILE]",
		Short: "Show the first rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := loadFrame(cmd, args)
			if err != nil {
				return err
			}
			return renderFrame(cmd.OutOrStdout(), df.Head(n), outputFormat(cmd))
		},
	}
	cmd.Flags().IntVarP(&n, "rows", "n", 5, "number of rows")
	return cmd
}

func newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [FILE]",
		Short: "Summary statistics of numeric columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := loadFrame(cmd, args)
			if err != nil {
				return err
			}
			desc, err := df.Describe()
			if err != nil {
				return err
			}
			return renderFrame(cmd.OutOrStdout(), desc, outputFormat(cmd))
		},
	}
}

func newGroupByCommand() *cobra.Command {
	var (
		by   []string
		aggs []string
	)
	cmd := &cobra.Command{
		Use:   "groupby [FILE]",
		Short: "Group rows and aggregate columns",
		Example: `  asktable groupby sales.csv --by region --agg revenue:sum
  asktable groupby sales.csv --by region,product --agg revenue:mean --agg units:max`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseAggs(aggs)
			if err != nil {
				return err
			}
			df, err := loadFrame(cmd, args)
			if err != nil {
				return err
			}
			g, err := df.GroupBy(by...)
			if err != nil {
				return err
			}
			out, err := g.Aggregate(parsed...)
			if err != nil {
				return err
			}
			return renderFrame(cmd.OutOrStdout(), out, outputFormat(cmd))
		},
	}
	cmd.Flags().StringSliceVar(&by, "by", nil, "columns to group by")
	cmd.Flags().StringArrayVar(&aggs, "agg", nil, "aggregation as column:func (sum mean median min max std count nunique)")
	_ = cmd.MarkFlagRequired("by")
	_ = cmd.MarkFlagRequired("agg")
	return cmd
}

// parseAggs turns column:func pairs into aggregations. Output columns keep
// the source name unless it is aggregated more than once.
func parseAggs(specs []string) ([]frame.Aggregation, error) {
	uses := make(map[string]int)
	out := make([]frame.Aggregation, 0, len(specs))
	for _, s := range specs {
		col, fn, ok := strings.Cut(s, ":")
		col, fn = strings.TrimSpace(col), strings.ToLower(strings.TrimSpace(fn))
		if !ok || col == "" || fn == "" {
			return nil, fmt.Errorf("invalid --agg %q: want column:func", s)
		}
		uses[col]++
		out = append(out, frame.Aggregation{Column: col, Func: fn})
	}
	for i, a := range out {
		if uses[a.Column] > 1 {
			out[i].As = a.Column + "_" + a.Func
		}
	}
	return out, nil
}

func newQueryCommand() *cobra.Command {
	var (
		sortBy string
		desc   bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "query EXPR [FILE]",
		Short: "Filter rows with a boolean expression",
		Example: `  asktable query "revenue > 100 and region == 'North'" sales.csv
  asktable query "units >= 10" sales.csv --sort revenue --desc --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := loadFrame(cmd, args[1:])
			if err != nil {
				return err
			}
			out, err := df.Query(args[0])
			if err != nil {
				return err
			}
			if sortBy != "" {
				if out, err = out.SortValues(sortBy, !desc); err != nil {
					return err
				}
			}
			if limit > 0 {
				out = out.Head(limit)
			}
			return renderFrame(cmd.OutOrStdout(), out, outputFormat(cmd))
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort the matches by this column")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to show (0 = all)")
	return cmd
}

func newSchemaCommand() *cobra.Command {
	var refine bool
	cmd := &cobra.Command{
		Use:   "schema [FILE]",
		Short: "Discover dimensions and measures",
		Long: `schema classifies every column as a dimension (for grouping and filtering)
or a measure (for aggregation), the same way questions are interpreted.

With --refine the draft is sent to the configured language model, which may
rename columns, set units and add hierarchies. Only column names, types and
sample values are sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := fromContext(ctx)
			df, err := loadFrame(cmd, args)
			if err != nil {
				return err
			}
			sch, err := schema.FromFrame(df)
			if err != nil {
				return err
			}
			if refine {
				client, err := newLLMClient(cmd)
				if err != nil {
					return err
				}
				refined, err := schema.Refine(ctx, sch, client)
				if err != nil {
					a.log.Warn().Err(err).Msg("refine failed, showing the discovered schema")
				}
				sch = refined
			}
			return writeJSON(cmd.OutOrStdout(), sch)
		},
	}
	cmd.Flags().BoolVar(&refine, "refine", false, "enrich the schema with the language model")
	return cmd
}
