package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reposync HTTP server in the foreground",
	Long:  `Starts the same HTTP API as cmd/server, useful for running the server under the CLI binary during local development.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		go func() {
			if err := a.Start(); err != nil {
				cancel()
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-ctx.Done():
		}

		return a.Stop()
	},
}
