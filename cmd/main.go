package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spinwheel/internal/configs"
	"spinwheel/internal/handlers"
	"spinwheel/internal/repository"
	"spinwheel/internal/services"

	"github.com/google/logger"
)

func main() {
	// 1. Load configuration and initialize logging
	cfg := configs.LoadConfig()

	var logFile io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
		if err != nil {
			logger.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logFile = f
	}
	defer logger.Init("spinwheel", cfg.Verbose, false, logFile).Close()

	// 2. Open the store
	store, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.DBDriver, err)
	}

	// 3. Initialize the wheel service
	wheelService := services.NewWheelService(store)

	if cfg.SeedDemo {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := wheelService.SeedDemo(ctx); err != nil {
			logger.Fatalf("Failed to seed demo data: %v", err)
		}
		cancel()
	}

	// 4. Set up the Gin router
	router := handlers.NewRouter(wheelService, handlers.RouterOptions{
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start the background sweeper that expires overdue claims
	if cfg.SweepInterval > 0 {
		go sweep(ctx, wheelService, cfg.SweepInterval)
	}

	// 6. Run the server
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		logger.Infof("Server starting on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown: %v", err)
	}
	logger.Info("Server stopped")
}

func openStore(cfg *configs.Config) (services.Store, error) {
	if cfg.DBDriver == "memory" {
		return repository.NewMemoryStore(), nil
	}

	db, err := repository.Open(cfg.DBDriver, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	store := repository.NewGormStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func sweep(ctx context.Context, s *services.WheelService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, every)
			n, err := s.CleanUpExpiredClaims(runCtx)
			cancel()
			if err != nil {
				logger.Errorf("Expiry sweep failed: %v", err)
				continue
			}
			logger.Infof("Performed expiry sweep, %d claims expired.", n)
		}
	}
}
