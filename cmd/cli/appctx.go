package main

import (
	"context"
	"fmt"

	"github.com/sevigo/reposync/internal/app"
	"github.com/sevigo/reposync/internal/config"
)

// newApp loads configuration and wires a full application instance for a
// single CLI invocation. The caller must invoke the returned cleanup func.
func newApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, func() {}, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.ValidateForCLI(); err != nil {
		return nil, func() {}, fmt.Errorf("invalid configuration: %w", err)
	}

	a, cleanup, err := app.New(ctx, cfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("initialize application: %w", err)
	}
	return a, cleanup, nil
}
