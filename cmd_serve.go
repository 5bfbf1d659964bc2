package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/graph-match-service/pkg/api"
	"github.com/gilchrisn/graph-match-service/pkg/service"
)

func runServe(cmd *cobra.Command, args []string) error {
	scoring := service.NewScoringService(cfg, logger)
	jobs := service.NewJobService(scoring, service.JobOptionsFromConfig(cfg), logger)
	defer jobs.Close()

	handlers := api.NewHandlers(scoring, jobs, logger)

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      api.NewRouter(handlers, cfg.AllowedOrigins(), logger),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", server.Addr).
			Int("job_workers", cfg.JobWorkers()).
			Msg("HTTP server starting")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errs:
		if ok {
			return err
		}
		return nil
	case <-quit:
		logger.Info().Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info().Msg("Server shutdown complete")
	return nil
}
