package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"repairtrack/internal/config"
	"repairtrack/internal/store"
	"repairtrack/pkg/logger"
	"repairtrack/router"
	"repairtrack/socket"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init()
	defer logger.Log.Sync()

	st, err := store.New(cfg.DataDir)
	if err != nil {
		logger.Sugar.Fatalf("Failed to prepare data directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := socket.NewHub(st)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router.Setup(st, hub, cfg.StaticDir, time.Now()),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	logger.Sugar.Infof("Repair tracker listening on http://localhost:%d", cfg.Port)
	logger.Sugar.Infof("Data directory: %s", cfg.DataDir)
	logger.Sugar.Infof("Static directory: %s", cfg.StaticDir)

	<-ctx.Done()
	logger.Sugar.Info("Shutting down gracefully...")

	// Stop accepting requests before stopping the hub, so no write can
	// publish into a stopped fan-out loop.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Server shutdown: %v", err)
	}
	stopHub()
}
