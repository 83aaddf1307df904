package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CreativeUnicorns/prefer/api"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Example: `  # Serve with an in-memory store on the default address
  prefer-server serve

  # Serve a sqlite-backed configuration on another port
  prefer-server serve --config prefer.yaml --listen :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error("Failed to close store", "error", err)
		}
	}()

	addr := a.cfg.Server.Address
	if listenAddr != "" {
		addr = listenAddr
	}

	server, err := api.NewServer(api.Config{
		ListenAddress: addr,
		Prefer:        a.prefer,
		Logger:        a.logger,
		ReadTimeout:   a.cfg.ReadTimeoutDuration(),
		WriteTimeout:  a.cfg.WriteTimeoutDuration(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
