package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/spektr-org/asktable/helpers"
	"github.com/spektr-org/asktable/history"
)

var errHistoryDisabled = errors.New("history is disabled: set history_path in the config or ASKTABLE_HISTORY_PATH")

func newHistoryCommand() *cobra.Command {
	var (
		limit    int
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "history [ID]",
		Short: "List, show or clear answered questions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := fromContext(ctx)
			if a.cfg.HistoryPath == "" {
				return errHistoryDisabled
			}
			store, err := history.Open(a.cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			asJSON := outputFormat(cmd) == formatJSON

			switch {
			case clearAll:
				n, err := store.Clear(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "deleted %d entries\n", n)
				return nil

			case len(args) == 1:
				e, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, e)
				}
				renderEntry(out, e)
				return nil
			}

			entries, err := store.List(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, entries)
			}
			t := newTable(out)
			t.AppendHeader(table.Row{"ID", "When", "Dataset", "Question", "Backend", "OK"})
			for _, e := range entries {
				ok := "yes"
				if !e.Success {
					ok = "no"
				}
				t.AppendRow(table.Row{shortID(e.ID), e.CreatedAt.Local().Format(time.DateTime), e.Dataset, helpers.Truncate(e.Question, 50), e.Backend, ok})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries to list (0 = all)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete every entry")
	return cmd
}

func renderEntry(w io.Writer, e history.Entry) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"ID", e.ID},
		{"When", e.CreatedAt.Local().Format(time.DateTime)},
		{"Question", e.Question},
		{"Dataset", e.Dataset},
		{"Backend", e.Backend},
		{"Intent", e.Intent},
		{"Reply", e.Reply},
		{"Duration", e.Duration.Round(time.Millisecond)},
	})
	if e.Error != "" {
		t.AppendRow(table.Row{"Error", e.Error})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
