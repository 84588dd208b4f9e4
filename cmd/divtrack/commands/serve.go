package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzurek/divtrack/internal/api"
	"github.com/mzurek/divtrack/internal/api/handlers"
)

// serveCmd starts the API server and the job scheduler together
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and job scheduler",
	Long: `Starts the REST API server and the cron scheduler.

The scheduler runs the two pipeline jobs:
  price_refresh           - every 15 min during market hours
  nightly_reconciliation  - once per business day after close

Endpoints:
  GET    /health
  GET    /api/instruments
  POST   /api/instruments
  GET    /api/instruments/{ticker}/prices
  GET    /api/instruments/{ticker}/dividends
  GET    /api/instruments/{ticker}/indicator
  GET    /api/instruments/{ticker}/dsg
  GET    /api/instruments/{ticker}/break-even
  POST   /api/jobs/{name}/run
  GET    /api/quota

Example:
  divtrack serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != "" {
		a.cfg.Port = servePort
	}
	log := a.logger

	instrumentHandler := handlers.NewInstrumentHandler(a.service, log)
	analyticsHandler := handlers.NewAnalyticsHandler(a.service, log)
	adminHandler := handlers.NewAdminHandler(a.service, log)

	router := api.NewRouter(instrumentHandler, analyticsHandler, adminHandler, a.db, log)
	server := api.New(a.cfg, log, router)

	a.scheduler.Start()
	defer a.scheduler.Stop()

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.WithField("port", a.cfg.Port).Info("divtrack up")
	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
