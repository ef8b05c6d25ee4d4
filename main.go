package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"engagement-service/internal/api"
	"engagement-service/internal/app"
	"engagement-service/internal/config"
	"engagement-service/internal/kafka"
	"engagement-service/internal/logging"
	"engagement-service/internal/scheduler"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("Failed to initialize engagement service: %v", err)
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	// Start dispatch workers
	svc := a.Service
	var wg sync.WaitGroup
	svc.Start(&wg)

	// Kafka consumer is optional
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer, err = kafka.NewConsumer(kafka.Config{
			Broker:  cfg.Kafka.Broker,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, svc, logger)
		if err != nil {
			logger.Errorf("Kafka consumer init failed: %v", err)
			log.Fatalf("Kafka consumer init failed: %v", err)
		}
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
		consumer.Start(ctx, &wg)
	}

	sched := scheduler.New(svc, cfg.Engagement.EvaluateInterval, logger)
	sched.Start(ctx)

	// Start API server
	router := api.NewRouter(svc, a.Hub, logger, cfg)
	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Infof("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	sched.Stop()
	cancel()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Kafka consumer close failed: %v", err)
		}
	}
	svc.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}
