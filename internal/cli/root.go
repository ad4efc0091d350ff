// Package cli provides the asktable command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spektr-org/asktable/config"
	"github.com/spektr-org/asktable/logger"
)

// Version is set at build time.
var Version = "0.3.0"

// app is the per-invocation state shared by every command.
type app struct {
	cfg     *config.Config
	cfgFile string // file actually read, "" for none
	cfgFlag string // --config as given
	log     zerolog.Logger
}

type appKey struct{}

func fromContext(ctx context.Context) *app {
	if a, ok := ctx.Value(appKey{}).(*app); ok {
		return a
	}
	return &app{cfg: config.Default(), log: zerolog.Nop()}
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var cfgFlag string

	root := &cobra.Command{
		Use:   "asktable",
		Short: "Ask questions about CSV and SQL data in plain language",
		Long: `asktable loads tabular data, answers natural-language questions about it
and runs quick data-quality and statistical checks.

Questions are translated into a query spec by a local Ollama model, Gemini,
or built-in heuristics when no model is reachable. The query itself always
runs locally; only column names and distinct category values are sent to a model.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, used, err := config.Load(cfgFlag, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a := &app{
				cfg:     cfg,
				cfgFile: used,
				cfgFlag: cfgFlag,
				log:     logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.Verbose),
			}
			if used != "" {
				a.log.Debug().Str("file", used).Msg("using config file")
			}

			ctx := context.WithValue(cmd.Context(), appKey{}, a)
			cmd.SetContext(a.log.WithContext(ctx))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFlag, "config", "", "config file (default: ./asktable.yaml)")
	pf.BoolP("verbose", "v", false, "verbose output")
	pf.StringP("output", "o", "", "output format (table|json|csv|text)")
	pf.String("provider", "", "language model provider (ollama|gemini|none)")
	pf.String("model", "", "language model name")
	pf.String("endpoint", "", "Ollama endpoint URL")
	pf.Int("max-rows", 0, "only load the first N rows (0 = all)")
	pf.String("sql", "", "read data with this SQL query instead of CSV files")
	pf.String("driver", "sqlite", "SQL driver for --sql (sqlite|postgres)")
	pf.String("dsn", "", "data source for --sql (sqlite path or postgres URL)")

	_ = root.RegisterFlagCompletionFunc("output", fixedCompletion("table", "json", "csv", "text"))
	_ = root.RegisterFlagCompletionFunc("provider", fixedCompletion("ollama", "gemini", "none"))
	_ = root.RegisterFlagCompletionFunc("driver", fixedCompletion("sqlite", "postgres"))

	root.AddCommand(
		newInfoCommand(),
		newHeadCommand(),
		newDescribeCommand(),
		newGroupByCommand(),
		newQueryCommand(),
		newSchemaCommand(),
		newCleanCommand(),
		newQualityCommand(),
		newStatsCommand(),
		newAnalyzeCommand(),
		newAskCommand(),
		newModelsCommand(),
		newHistoryCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// Execute runs the root command until it finishes or the user interrupts.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "asktable v%s\n", Version)
		},
	}
}
