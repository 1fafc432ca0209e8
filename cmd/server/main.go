package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/api"
	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/jobs"
	"github.com/codyseavey/tcg-inventory/internal/logging"
	"github.com/codyseavey/tcg-inventory/internal/services"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	if err := database.Initialize(cfg.Database, logging.Component(log, "database")); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := database.GetDB()

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inventory := database.NewInventoryStore(db)
	alerts := database.NewAlertStore(db)
	templateStore := database.NewTemplateStore(db)
	snapshotStore := database.NewSnapshotStore(db)

	lock, closeLock := jobs.NewOwnerLock(ctx, cfg.Lock, logging.Component(log, "lock"))
	defer closeLock()
	registry := jobs.NewRegistry()
	runner := jobs.NewRunner(ctx, registry, lock, cfg.Jobs.MaxConcurrent, logging.Component(log, "jobs"))

	// Initialize services
	scryfallService := services.NewScryfallService(cfg.Scryfall, logging.Component(log, "scryfall"))
	enricher := services.NewEnricher(inventory, scryfallService, cfg.Jobs, logging.Component(log, "enricher"))
	templateService := services.NewTemplateService(templateStore, inventory, runner, enricher, logging.Component(log, "templates"))
	collectionService := services.NewCollectionService(inventory, alerts, enricher, templateService, runner, cfg.Jobs, logging.Component(log, "collection"))
	priceMonitor := services.NewPriceMonitor(inventory, enricher, lock, cfg.Jobs.MonitorInterval, logging.Component(log, "monitor"))
	snapshotService := services.NewSnapshotService(inventory, snapshotStore, cfg.Jobs.SnapshotHour, logging.Component(log, "snapshots"))

	go superviseWorker(ctx, log, "price monitor", priceMonitor.Start)
	go superviseWorker(ctx, log, "snapshot service", snapshotService.Start)
	go pruneJobStates(ctx, registry, log)

	// Setup router
	router := api.SetupRouter(cfg.Server, api.Services{
		Collection: collectionService,
		Templates:  templateService,
		Snapshots:  snapshotService,
		Cards:      scryfallService,
	}, logging.Component(log, "api"))

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server forced to shutdown: %v", err)
	}

	// Stop the workers and let running jobs record their outcome
	cancel()
	runner.Wait()

	log.Info("Server exited")
}

// superviseWorker runs start until ctx is cancelled, restarting it 30 seconds after a panic
func superviseWorker(ctx context.Context, log logrus.FieldLogger, name string, start func(context.Context)) {
	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("PANIC in %s: %v - restarting in 30 seconds", name, r)
				}
			}()
			start(ctx)
		}()

		select {
		case <-ctx.Done():
			return // Graceful shutdown
		case <-time.After(30 * time.Second):
			log.Infof("%s restarting after panic recovery...", name)
		}
	}
}

// pruneJobStates drops finished job states nobody has polled for a day
func pruneJobStates(ctx context.Context, registry *jobs.Registry, log logrus.FieldLogger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := registry.Prune(now.Add(-24 * time.Hour)); n > 0 {
				log.Debugf("Jobs: pruned %d finished job states", n)
			}
		}
	}
}
