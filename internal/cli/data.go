package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/spektr-org/asktable/frame"
)

var errNoInput = errors.New("no data: pass CSV files or --sql with --dsn")

// loadFrames reads every CSV path in args, or the --sql result set when
// --sql is given.
func loadFrames(cmd *cobra.Command, args []string) ([]*frame.DataFrame, error) {
	ctx := cmd.Context()
	a := fromContext(ctx)

	query, _ := cmd.Flags().GetString("sql")
	if query != "" {
		driver, _ := cmd.Flags().GetString("driver")
		dsn, _ := cmd.Flags().GetString("dsn")
		df, err := readSQL(ctx, driver, dsn, query, a.cfg.MaxRows)
		if err != nil {
			return nil, err
		}
		a.log.Debug().Str("driver", driver).Int("rows", df.Len()).Msg("loaded sql result")
		return []*frame.DataFrame{df}, nil
	}

	if len(args) == 0 {
		return nil, errNoInput
	}

	var opts []frame.CSVOption
	if a.cfg.MaxRows > 0 {
		opts = append(opts, frame.WithMaxRows(a.cfg.MaxRows))
	}

	frames := make([]*frame.DataFrame, len(args))
	g, _ := errgroup.WithContext(ctx)
	for i, path := range args {
		g.Go(func() error {
			df, err := frame.ReadCSVFile(path, opts...)
			if err != nil {
				return err
			}
			frames[i] = df
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, df := range frames {
		rows, cols := df.Shape()
		a.log.Debug().Str("frame", df.Name()).Int("rows", rows).Int("columns", cols).Msg("loaded csv")
	}
	return frames, nil
}

// loadFrame is loadFrames for commands that work on a single frame.
func loadFrame(cmd *cobra.Command, args []string) (*frame.DataFrame, error) {
	frames, err := loadFrames(cmd, args)
	if err != nil {
		return nil, err
	}
	if len(frames) > 1 {
		return nil, fmt.Errorf("expected one data source, got %d", len(frames))
	}
	return frames[0], nil
}

// sqlDriver maps user-facing driver names onto registered database/sql drivers.
func sqlDriver(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	}
	return "", fmt.Errorf("unsupported driver %q (want sqlite or postgres)", name)
}

func readSQL(ctx context.Context, driver, dsn, query string, maxRows int) (*frame.DataFrame, error) {
	if dsn == "" {
		return nil, fmt.Errorf("--dsn is required with --sql")
	}
	name, err := sqlDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}
	defer func() { _ = db.Close() }()

	df, err := frame.ReadSQL(ctx, db, query)
	if err != nil {
		return nil, err
	}
	if maxRows > 0 && df.Len() > maxRows {
		df = df.Head(maxRows)
	}
	return df.WithName("query"), nil
}
