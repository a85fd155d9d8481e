// Package main is the entry point for the Orthrus detection engine.
package main

import (
	"context"
	"fmt"
	"os"

	"orthrus/bootstrap"
	"orthrus/cmd"
)

// run initializes and starts the detection engine daemon.
func run() error {
	ctx := context.Background()

	// Create and initialize application
	app, err := bootstrap.NewApp()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Start all services
	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown signal
	app.WaitForShutdown()

	// Graceful shutdown
	app.Shutdown()

	return nil
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 && os.Args[1] == "config" {
		// Strip "config" from os.Args since the command already knows it is
		// the config command
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		configCmd := cmd.NewConfigCmd()
		if err := configCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Otherwise run as daemon
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
