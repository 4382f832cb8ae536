package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the OAuth and credential HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(contextOf(cmd), true, false)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the periodic token refresh sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(contextOf(cmd), false, true)
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Serve the API and run the sweep in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(contextOf(cmd), true, true)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one token refresh sweep and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, cleanup, err := newApp(ctx)
		defer cleanup()
		if err != nil {
			return err
		}

		report := a.newScheduler().RunOnce(ctx)
		if report == nil {
			return fmt.Errorf("sweep did not run (lock held elsewhere or sweep failed, see logs)")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// run starts the API, the scheduler or both, and blocks until a shutdown signal.
func run(parent context.Context, serveAPI, runWorker bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx)
	defer cleanup()
	if err != nil {
		return err
	}
	a.logger.Info("socialconnect starting", "version", version, "api", serveAPI, "worker", runWorker)

	g, ctx := errgroup.WithContext(ctx)

	if runWorker {
		scheduler := a.newScheduler()
		g.Go(func() error {
			if err := scheduler.Start(ctx); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			<-ctx.Done()
			scheduler.Stop()
			return nil
		})
	}

	if serveAPI {
		server, err := a.newServer()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	return g.Wait()
}
