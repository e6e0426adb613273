package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/recovery"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fern",
		Short:         "Business directory import and recovery service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newRecoverCmd())
	return root
}

// bootstrap loads configuration and wires the app. The caller owns Stop.
func bootstrap(ctx context.Context) (*config.Config, ectologger.Logger, *app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, a, nil
}

func stopApp(a *app.App, logger ectologger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		logger.WithError(err).Error("Failed to stop dependencies cleanly")
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer stopApp(a, logger)

			if cfg.DatabaseMigrateOnStart {
				if err := a.Migrate(); err != nil {
					return err
				}
			}
			if err := a.Start(ctx); err != nil {
				return err
			}

			router, err := a.Router(ctx)
			if err != nil {
				return err
			}
			server := a.Server(router)

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Listening on %s (integrations: %s)", server.Addr, a.Describe())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer stopApp(a, logger)

			return a.Migrate()
		},
	}
}

func newRecoverCmd() *cobra.Command {
	var opts recovery.RunOptions

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Re-import every logged entity that is missing from the directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer stopApp(a, logger)

			if !cmd.Flags().Changed("batch-size") {
				opts.BatchSize = cfg.RecoveryBatchSize
			}
			if !cmd.Flags().Changed("pause") {
				opts.Pause = cfg.RecoveryPause
			}
			if err := a.Start(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts.OnProgress = func(p recovery.Progress) {
				fmt.Fprintf(out, "batch %d: %d/%d processed, %d imported, %d skipped, %d errors\n",
					p.Batch, p.Processed, p.Total, p.Imported, p.Skipped, p.Errors)
			}

			progress, err := recovery.NewRunner(a.Recoveries, logger).Run(ctx, opts)
			fmt.Fprintf(out, "done: %d imported, %d skipped, %d errors of %d remaining\n",
				progress.Imported, progress.Skipped, progress.Errors, progress.Total)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", recovery.DefaultBatchSize, "ids per recovery batch")
	cmd.Flags().DurationVar(&opts.Pause, "pause", recovery.DefaultPause, "pause between batches")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list what would be recovered without writing")
	return cmd
}
