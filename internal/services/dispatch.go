package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"engagement-service/internal/models"
)

// Start launches the worker pool
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.Notification.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop signals the workers to exit; the caller waits on the WaitGroup passed to Start.
func (s *Service) Stop() {
	s.cancel()
}

// QueueTask enqueues a Task for processing. A full queue drops the task.
func (s *Service) QueueTask(task models.Task) bool {
	select {
	case s.tasks <- task:
		s.pending.Add(1)
		s.logger.Infof("Queued task: request_id=%s type=%s", task.RequestID, task.Type)
		return true
	default:
		s.logger.Errorf("Queue full, dropping task: request_id=%s", task.RequestID)
		return false
	}
}

// Drain waits until every queued task has been handled. It reports false when ctx ends first.
func (s *Service) Drain(ctx context.Context) bool {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

// worker processes Tasks until context is cancelled
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case task := <-s.tasks:
			s.handleTask(task)
			s.pending.Add(-1)
		}
	}
}

// handleTask sends a task through every configured channel and records each attempt.
func (s *Service) handleTask(task models.Task) {
	reqID, err := uuid.Parse(task.RequestID)
	if err != nil {
		s.logger.Errorf("Invalid request ID %s: %v", task.RequestID, err)
		return
	}

	for _, channel := range s.config.Notification.Channels {
		notifier, ok := s.notifiers[channel]
		if !ok {
			s.logger.Warnf("No notifier registered for channel %s, skipping", channel)
			continue
		}

		now := time.Now()
		notif := models.Notification{
			ID:        uuid.New(),
			RequestID: reqID,
			CreatedAt: now,
			UpdatedAt: now,
			Type:      task.Type,
			Subject:   task.Subject,
			Body:      task.Body,
			Channel:   channel,
			Status:    models.NotificationPending,
			LeadID:    task.LeadID,
			DealID:    task.DealID,
		}

		if task.Silenced {
			notif.Status = models.NotificationSilenced
			notif.Error = "quiet window active, no dispatch"
			s.logger.Infof("Notification %s via %s silenced", task.RequestID, channel)
		} else {
			if err := notifier.Send(s.ctx, task.Subject, task.Body); err != nil {
				notif.Status = models.NotificationFailed
				notif.Error = err.Error()
				s.logger.Errorf("Dispatch error via %s: %v", channel, err)
			} else {
				notif.Status = models.NotificationSuccess
			}
			s.logger.Infof("Notification %s dispatched %s via %s", task.RequestID, notif.Status, channel)
		}
		notif.UpdatedAt = time.Now()

		if err := s.stores.Notifications.CreateNotification(s.ctx, notif); err != nil {
			s.logger.Errorf("CreateNotification failed: %v", err)
		}
	}
}

func newTask(taskType, subject, body string, at time.Time) models.Task {
	return models.Task{
		RequestID: uuid.NewString(),
		Type:      taskType,
		Subject:   subject,
		Body:      body,
		Timestamp: at,
	}
}
