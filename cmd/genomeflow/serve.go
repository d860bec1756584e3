package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bgricker/genomeflow/internal/dashboard"
	"github.com/bgricker/genomeflow/internal/failure"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	dir   string
	addr  string
	table string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve results, statistics, reports and metrics over HTTP",
		Args:  validArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.dir, "dir", "", "results directory (default the output directory)")
	flags.StringVar(&opts.addr, "addr", ":8080", "listen address")
	flags.StringVar(&opts.table, "table", "", "CSV or TSV file served at /api/table")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := opts.dir
	if dir == "" {
		dir = cfg.Output
	}
	if info, err := os.Stat(dir); err != nil {
		return failure.Validation(err, "results directory")
	} else if !info.IsDir() {
		return failure.Validationf("results directory %q is not a directory", dir)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	srv := dashboard.NewServer(dashboard.Config{
		Addr:   opts.addr,
		Dir:    dir,
		Table:  opts.table,
		Title:  cfg.Report.Title,
		Logger: logger.Logger,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return failure.Environment(err, "")
		}
		return nil
	case <-cmd.Context().Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
