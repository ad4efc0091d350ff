package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/spektr-org/asktable/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	cmd.AddCommand(newConfigShowCommand(), newConfigSetCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `show prints every setting after defaults, the config file, ASKTABLE_
environment variables and flags have been applied. The API key is masked.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := fromContext(cmd.Context())
			values := a.cfg.Redacted()
			out := cmd.OutOrStdout()
			if outputFormat(cmd) == formatJSON {
				return writeJSON(out, values)
			}

			if a.cfgFile != "" {
				_, _ = fmt.Fprintf(out, "config file: %s\n", a.cfgFile)
			}
			t := newTable(out)
			t.AppendHeader(table.Row{"Key", "Value"})
			for _, k := range a.cfg.Keys() {
				t.AppendRow(table.Row{k, values[k]})
			}
			t.Render()
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Change settings in the config file",
		Long: `set validates the new values and writes them to the config file given by
--config, the file currently in use, or ./asktable.yaml. Environment
variables and flags are not written to the file.`,
		Example: `  asktable config set llm.provider=gemini llm.model=gemini-2.5-flash
  asktable config set max_rows=10000 history_path=~/.asktable/history.db`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())

			overrides := make(map[string]any, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid setting %q: want KEY=VALUE", arg)
				}
				overrides[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}

			target := a.cfgFlag
			if target == "" {
				target = a.cfgFile
			}
			if target == "" {
				target = config.FileNames[0]
			}

			base, err := config.LoadFile(target)
			if err != nil {
				return err
			}
			updated, err := base.With(overrides)
			if err != nil {
				return err
			}
			if err := updated.Save(target); err != nil {
				return err
			}
			a.log.Debug().Str("file", target).Int("keys", len(overrides)).Msg("saved config")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %d setting(s) to %s\n", len(overrides), target)
			return nil
		},
	}
}
