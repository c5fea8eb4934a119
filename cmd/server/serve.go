package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tabletop-chat/backend/internal/database"
	"tabletop-chat/backend/pkg/config"
	"tabletop-chat/backend/pkg/di"
	"tabletop-chat/backend/pkg/grpcserver"
	"tabletop-chat/backend/pkg/router"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and gRPC servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		log := newLogger(cfg)
		log.Info("Starting application", "version", version, "env", cfg.Server.Env)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := config.NewDB(cfg)
		if err != nil {
			log.LogError(err, "Failed to initialize database")
			return err
		}
		if err := database.Migrate(ctx, db); err != nil {
			log.LogError(err, "Failed to migrate database")
			return err
		}

		container, err := di.New(ctx, cfg, db, log, di.Options{})
		if err != nil {
			log.LogError(err, "Failed to initialize dependency container")
			return err
		}
		container.Start(ctx)

		r := router.New(container)
		r.SetupRoutes()
		defer r.Stop()

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           r.Engine,
			ReadHeaderTimeout: cfg.Server.Timeout,
		}
		grpcSrv := grpcserver.New(container.Health, log)

		errCh := make(chan error, 2)
		go func() {
			log.Info("Server starting", "port", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		go func() {
			if err := grpcSrv.ListenAndServe(cfg.Server.GRPCPort); err != nil {
				errCh <- err
			}
		}()

		var runErr error
		select {
		case <-ctx.Done():
			log.Info("Shutting down server...")
		case runErr = <-errCh:
			log.LogError(runErr, "Server failed")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.LogError(err, "Server forced to shutdown")
		}
		grpcSrv.Stop()
		if err := container.Close(shutdownCtx); err != nil {
			log.LogError(err, "Failed to release resources")
		}

		log.Info("Server exited gracefully")
		return runErr
	},
}
