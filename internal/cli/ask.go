package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/spektr-org/asktable/assistant"
	"github.com/spektr-org/asktable/frame"
	"github.com/spektr-org/asktable/history"
	"github.com/spektr-org/asktable/llm"
)

// newLLMClient builds the configured model client. It returns
// llm.ErrNoProvider when models are switched off.
func newLLMClient(cmd *cobra.Command) (llm.Client, error) {
	return llm.New(cmd.Context(), fromContext(cmd.Context()).cfg.LLMConfig())
}

func newAskCommand() *cobra.Command {
	var (
		question string
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "ask [FILE...]",
		Short: "Answer a question about the data",
		Long: `ask answers a natural-language question about one or more CSV files, or
the result of --sql. With several files the question goes to the one whose
columns it mentions most.

Without --question, ask reads questions from stdin until EOF or "exit".
In that mode "set key=value" changes a config value for the session.

When history_path is configured every answer is recorded there. With --save
each result (chart spec, table or text) is also written as JSON to output_dir.`,
		Example: `  asktable ask sales.csv -q "revenue by region"
  asktable ask sales.csv staff.csv --provider none
  asktable ask --sql "select * from orders" --dsn shop.db -q "monthly revenue"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := fromContext(ctx)

			frames, err := loadFrames(cmd, args)
			if err != nil {
				return err
			}

			opts := []assistant.Option{assistant.WithLogger(a.log)}
			client, err := newLLMClient(cmd)
			switch {
			case err == nil:
				opts = append(opts, assistant.WithLLM(client))
			case errors.Is(err, llm.ErrNoProvider):
				a.log.Debug().Msg("no language model configured, using heuristics")
			default:
				a.log.Warn().Err(err).Msg("language model unavailable, using heuristics")
			}

			if a.cfg.HistoryPath != "" {
				store, err := history.Open(a.cfg.HistoryPath)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				opts = append(opts, assistant.WithHistory(store))
			}

			asst := assistant.New(a.cfg, opts...)
			if question != "" {
				return answer(cmd, asst, question, frames, save)
			}
			return chatLoop(cmd, asst, frames, save)
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to answer (default: read from stdin)")
	cmd.Flags().BoolVar(&save, "save", false, "write each result as JSON to output_dir")
	return cmd
}

func answer(cmd *cobra.Command, asst *assistant.Assistant, q string, frames []*frame.DataFrame, save bool) error {
	ans, err := asst.Chat(cmd.Context(), q, frames...)
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	for _, w := range ans.Warnings {
		_, _ = fmt.Fprintf(errOut, "warning: %s\n", w)
	}
	cfg := asst.Config()
	if save {
		path, err := saveResult(cfg.OutputDir, ans)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(errOut, "saved %s\n", path)
	}
	return renderAnswer(cmd.OutOrStdout(), ans, cfg.Output)
}

// saveResult writes ans.Result to dir/<type>_<id>.json and returns the path.
func saveResult(dir string, ans *assistant.Answer) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", ans.Result.Type, shortID(ans.ID)))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	if err := writeJSON(f, ans.Result); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func chatLoop(cmd *cobra.Command, asst *assistant.Assistant, frames []*frame.DataFrame, save bool) error {
	errOut := cmd.ErrOrStderr()
	names := make([]string, len(frames))
	for i, df := range frames {
		rows, cols := df.Shape()
		names[i] = fmt.Sprintf("%s (%d x %d)", df.Name(), rows, cols)
	}
	_, _ = fmt.Fprintf(errOut, "loaded %s\nask a question, or \"exit\" to quit\n", strings.Join(names, ", "))

	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		_, _ = fmt.Fprint(errOut, "> ")
		if !sc.Scan() {
			_, _ = fmt.Fprintln(errOut)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, "set "):
			if err := setOption(asst, strings.TrimPrefix(line, "set ")); err != nil {
				_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
			}
			continue
		}

		if err := answer(cmd, asst, line, frames, save); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
}

// setOption applies one key=value pair to the assistant's config.
func setOption(asst *assistant.Assistant, kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return fmt.Errorf("want key=value, got %q", kv)
	}
	return asst.SetConfig(map[string]any{strings.TrimSpace(key): strings.TrimSpace(value)})
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available from Ollama and Gemini",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := fromContext(cmd.Context())
			available := llm.AvailableModels(cmd.Context(), a.cfg.LLMConfig())
			if outputFormat(cmd) == formatJSON {
				return writeJSON(cmd.OutOrStdout(), available)
			}
			renderModels(cmd.OutOrStdout(), available, a.cfg.LLM.Provider, a.cfg.LLM.Model)
			return nil
		},
	}
}

func renderModels(w io.Writer, available map[string][]string, provider, model string) {
	providers := make([]string, 0, len(available))
	for p := range available {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	t := newTable(w)
	t.AppendHeader(table.Row{"Provider", "Model", ""})
	for _, p := range providers {
		for _, m := range available[p] {
			mark := ""
			if p == provider && m == model {
				mark = "*"
			}
			t.AppendRow(table.Row{p, m, mark})
		}
	}
	t.Render()
}
