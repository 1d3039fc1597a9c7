package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"station_monitor/internal/config"
	"station_monitor/internal/handlers"
	"station_monitor/internal/logger"
	"station_monitor/internal/opc"
	"station_monitor/internal/repository"
	"station_monitor/internal/repository/db"
	"station_monitor/internal/server"
	"station_monitor/internal/service"
	"station_monitor/internal/supervisor"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := config.Load(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	sqlDB, err := db.InitDB(config.DBPath())
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	registry := opc.NewRegistry()
	services := service.NewService(repos, registry, log)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// supervise station connections
	super := supervisor.New(repos.Stations, registry, opc.Dial, repos.Stations, log, supervisor.Options{
		ReconcileInterval: config.ReconcileInterval(),
	})
	apiHandler.SetReconcile(super.Trigger)
	go super.Start(ctx)

	// start telemetry acquisition
	go services.Poller.Run(ctx)

	// retention janitor for the breach log, disabled when no max age is set
	if maxAge := config.BreachRetention(); maxAge > 0 {
		go services.Breaches.RunRetention(ctx, config.JanitorInterval(), maxAge)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, config.HTTPPort(), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
