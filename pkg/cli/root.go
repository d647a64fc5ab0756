// Package cli implements the ancine command line: ingestion, source sync,
// the dashboard server and run ledger inspection.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"github.com/spf13/cobra"

	"ancine-dash/internal/app"
	"ancine-dash/internal/config"
	"ancine-dash/internal/db"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// rootState is the state resolved once by the root command before any
// subcommand runs.
type rootState struct {
	envFile  string
	output   string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	rt := &rootState{}

	rootCmd := &cobra.Command{
		Use:           "ancine",
		Short:         "ANCINE box-office ingestion and dashboard",
		Long:          "Converts ANCINE box-office exports into a unified Parquet dataset and serves a dashboard over it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(rt.output); err != nil {
				return err
			}
			if cmd.Name() == "version" {
				return nil
			}
			return rt.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "Environment file loaded before configuration")
	rootCmd.PersistentFlags().StringVarP(&rt.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(newIngestCmd(rt))
	rootCmd.AddCommand(newServeCmd(rt))
	rootCmd.AddCommand(newSyncCmd(rt))
	rootCmd.AddCommand(newRunsCmd(rt))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (rt *rootState) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(rt.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if rt.logLevel != "" {
		cfg.LogLevel = rt.logLevel
	}
	rt.cfg = cfg
	rt.logger = newLogger(cmd.ErrOrStderr(), cfg.SlogLevel())
	slog.SetDefault(rt.logger)
	for _, w := range cfg.Warnings {
		rt.logger.Warn(w)
	}
	return nil
}

// stores is the pair of handles every data command opens.
type stores struct {
	duck   *sql.DB
	ledger *db.Ledger
}

func (s *stores) Close() {
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
	if s.duck != nil {
		_ = s.duck.Close()
	}
}

// openStores opens an in-memory DuckDB and the run ledger. A ledger that
// cannot be opened is logged and left out; the pipeline runs without it.
func (rt *rootState) openStores() (*stores, error) {
	duck, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	s := &stores{duck: duck}
	ledger, err := db.OpenLedger(rt.cfg.LedgerPath())
	if err != nil {
		rt.logger.Warn("run ledger unavailable", "path", rt.cfg.LedgerPath(), "error", err)
	} else {
		s.ledger = ledger
	}
	return s, nil
}

func (rt *rootState) newApp(s *stores) *app.App {
	return app.New(app.Deps{
		Cfg:    rt.cfg,
		DuckDB: s.duck,
		Ledger: s.ledger,
		Logger: rt.logger,
	})
}
