package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"asd_commerce/internal/config"
	"asd_commerce/internal/logging"
)

type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger zerolog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "asd",
		Short:         "Autonomous sales department: agents sharing a knowledge graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "asd.toml", "path to the TOML config file")
	flags.StringVar(&opts.dbPath, "db", "", "sqlite database path override")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format override (console, json)")

	cmd.AddCommand(
		newDemoCmd(opts),
		newServeCmd(opts),
		newExportCmd(opts),
		newMonitorCmd(opts),
	)
	return cmd
}

// load resolves the config file, environment and flags, in that order of
// increasing precedence, and builds the logger from the result.
func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.dbPath != "" {
		cfg.Store.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}
