package scheduler

import (
	"context"
	"sync"
	"time"

	"engagement-service/internal/logging"
	"engagement-service/internal/services"
)

// Evaluator runs one follow-up pass.
type Evaluator interface {
	EvaluateNow(ctx context.Context) (services.EvaluationReport, error)
}

// Scheduler triggers an evaluation pass on a fixed interval.
type Scheduler struct {
	eval     Evaluator
	logger   *logging.Logger
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(eval Evaluator, interval time.Duration, logger *logging.Logger) *Scheduler {
	return &Scheduler{eval: eval, interval: interval, logger: logger}
}

// Start runs a pass immediately and then once per interval. A non-positive interval
// leaves the scheduler idle.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Infof("Evaluation scheduler disabled")
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
	s.logger.Infof("Evaluation scheduler started with interval %v", s.interval)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	report, err := s.eval.EvaluateNow(s.ctx)
	if err != nil {
		s.logger.Errorf("Evaluation pass failed: %v", err)
		return
	}
	if report.Suppressed {
		s.logger.Debugf("Evaluation pass held %d alerts in quiet window", len(report.Alerts))
		return
	}
	s.logger.Debugf("Evaluation pass queued %d of %d alerts", report.Queued, len(report.Alerts))
}
