package main

import (
	"context"
	"log"
	"sync"
	"time"

	"engagement-service/internal/app"
	"engagement-service/internal/config"
	"engagement-service/internal/logging"
)

// Runs a single follow-up evaluation pass, waits for the queued notifications to be
// dispatched, and exits. Meant for cron-style triggers.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("Failed to initialize engagement service: %v", err)
		log.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	svc := a.Service
	var wg sync.WaitGroup
	svc.Start(&wg)

	report, err := svc.EvaluateNow(ctx)
	if err != nil {
		logger.Errorf("Evaluation pass failed: %v", err)
		svc.Stop()
		wg.Wait()
		log.Fatalf("Evaluation pass failed: %v", err)
	}
	logger.Infof("Evaluation at %s: %d alerts, %d queued, suppressed=%t",
		report.EvaluatedAt.Format(time.RFC3339), len(report.Alerts), report.Queued, report.Suppressed)

	if !svc.Drain(ctx) {
		logger.Warnf("Dispatch queue not drained before timeout")
	}
	svc.Stop()
	wg.Wait()
}
