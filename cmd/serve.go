package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/fingerprint"
	"github.com/kozaktomas/faceprints/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve the index over a JSON HTTP API under /api/v1. Set WEB_API_TOKEN to
require "Authorization: Bearer <token>" on every endpoint except health.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default $WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default $WEB_HOST or 127.0.0.1)")
	serveCmd.Flags().Bool("no-provider", false, "Disable image classification through the embedding server")
}

func runServe(cmd *cobra.Command, args []string) error {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	noProvider := mustGetBool(cmd, "no-provider")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port > 0 {
		a.cfg.Web.Port = port
	}
	if host != "" {
		a.cfg.Web.Host = host
	}

	var provider fingerprint.Provider
	if !noProvider {
		provider = a.provider()
	}
	server := web.NewServer(&a.cfg.Web, a.index, provider, a.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Fprintf(os.Stderr, "Serving %s on http://%s\n", a.index.Root(), a.cfg.Web.Addr())
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
