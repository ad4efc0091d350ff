package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/spektr-org/asktable/assistant"
	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/helpers"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
	formatText  = "text"
)

func outputFormat(cmd *cobra.Command) string {
	return fromContext(cmd.Context()).cfg.Output
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ============================================================================
// FRAMES
// ============================================================================

func renderFrame(w io.Writer, df *frame.DataFrame, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, frameRecords(df))
	case formatCSV:
		return df.WriteCSV(w)
	default:
		_, err := io.WriteString(w, df.String())
		return err
	}
}

// frameRecords converts df into one map per row. Nulls become JSON null.
func frameRecords(df *frame.DataFrame) []map[string]any {
	rows, cols := df.Shape()
	out := make([]map[string]any, rows)
	for r := range rows {
		rec := make(map[string]any, cols)
		for c := range cols {
			s := df.ColumnAt(c)
			rec[s.Name()] = s.Value(r)
		}
		out[r] = rec
	}
	return out
}

// ============================================================================
// ANSWERS
// ============================================================================

func renderAnswer(w io.Writer, ans *assistant.Answer, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, ans)
	case formatCSV:
		return writeResultCSV(w, ans.Result)
	case formatText:
		_, err := fmt.Fprintln(w, ans.Result.Reply)
		return err
	}

	res := ans.Result
	if _, err := fmt.Fprintf(w, "%s\n\n", res.Reply); err != nil {
		return err
	}
	switch {
	case res.ChartConfig != nil:
		renderChart(w, res.ChartConfig)
	case res.TableData != nil:
		renderTableData(w, res.TableData)
	case res.Data != nil && res.Summary != "":
		_, _ = fmt.Fprintln(w, res.Summary)
	}
	_, err := fmt.Fprintf(w, "\n%s · %d of %d rows · %s\n", ans.Backend, res.RowsMatched, res.RowsScanned, ans.Duration.Round(time.Millisecond))
	return err
}

func renderChart(w io.Writer, cc *engine.ChartConfig) {
	header, rows := chartGrid(cc, helpers.FormatNumber)
	t := newTable(w)
	if cc.Title != "" {
		t.SetTitle(cc.Title)
	}
	t.AppendHeader(toRow(header))
	for _, r := range rows {
		t.AppendRow(toRow(r))
	}
	configs := make([]table.ColumnConfig, 0, len(header)-1)
	for i := 2; i <= len(header); i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
	t.Render()
}

func renderTableData(w io.Writer, td *engine.TableData) {
	t := newTable(w)
	if td.Title != "" {
		t.SetTitle(td.Title)
	}
	header := make([]string, len(td.Columns))
	var configs []table.ColumnConfig
	for i, c := range td.Columns {
		header[i] = c.Label
		if c.Align == "right" || c.Type == "number" {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	t.AppendHeader(toRow(header))
	for _, r := range td.Rows {
		t.AppendRow(toRow(r))
	}
	if td.Summary != nil {
		footer := make(table.Row, len(td.Columns))
		for i, c := range td.Columns {
			footer[i] = td.Summary.Values[c.Key]
		}
		if len(footer) > 0 && footer[0] == "" {
			footer[0] = td.Summary.Label
		}
		t.AppendFooter(footer)
	}
	t.SetColumnConfigs(configs)
	t.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// chartGrid flattens a chart into a header and rows. A single series gives
// label and value columns; several series give one value column each,
// keyed by label in first-seen order.
func chartGrid(cc *engine.ChartConfig, num func(float64) string) ([]string, [][]string) {
	xLabel := cc.XAxis
	if xLabel == "" {
		xLabel = "Label"
	}
	if len(cc.Series) == 1 {
		s := cc.Series[0]
		name := s.Name
		if name == "" {
			name = "Value"
		}
		rows := make([][]string, len(s.Data))
		for i, p := range s.Data {
			rows[i] = []string{p.Label, num(p.Value)}
		}
		return []string{xLabel, name}, rows
	}

	header := []string{xLabel}
	var labels []string
	cells := make(map[string][]string)
	for si, s := range cc.Series {
		header = append(header, s.Name)
		for _, p := range s.Data {
			row, ok := cells[p.Label]
			if !ok {
				row = make([]string, len(cc.Series))
				labels = append(labels, p.Label)
			}
			row[si] = num(p.Value)
			cells[p.Label] = row
		}
	}
	rows := make([][]string, len(labels))
	for i, l := range labels {
		rows[i] = append([]string{l}, cells[l]...)
	}
	return header, rows
}

// writeResultCSV writes chart or table data as CSV. Text answers become a
// one-row summary.
func writeResultCSV(w io.Writer, res *engine.Result) error {
	cw := csv.NewWriter(w)
	switch {
	case res.ChartConfig != nil && len(res.ChartConfig.Series) > 0:
		header, rows := chartGrid(res.ChartConfig, csvNumber)
		_ = cw.Write(header)
		_ = cw.WriteAll(rows)
	case res.TableData != nil:
		header := make([]string, len(res.TableData.Columns))
		for i, c := range res.TableData.Columns {
			header[i] = c.Label
		}
		_ = cw.Write(header)
		_ = cw.WriteAll(res.TableData.Rows)
	default:
		value, unit := "", ""
		if res.Data != nil {
			value, unit = csvNumber(res.Data.RawValue), res.Data.Unit
		}
		_ = cw.Write([]string{"Summary", "Value", "Unit"})
		_ = cw.Write([]string{res.Reply, value, unit})
	}
	cw.Flush()
	return cw.Error()
}

// csvNumber prints whole numbers without decimals and the rest with two.
func csvNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
