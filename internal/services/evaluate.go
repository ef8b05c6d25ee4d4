package services

import (
	"context"
	"fmt"
	"time"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

// EvaluationReport summarizes one follow-up pass.
type EvaluationReport struct {
	EvaluatedAt time.Time              `json:"evaluated_at"`
	Alerts      []models.FollowUpAlert `json:"alerts"`
	Suppressed  bool                   `json:"suppressed"`
	Queued      int                    `json:"queued"`
}

// EvaluateNow generates follow-up alerts for every business type. Outside the quiet window
// each alert is queued and its deal marked as alerted; inside it alerts are only reported
// so they fire on the first pass after the window closes.
func (s *Service) EvaluateNow(ctx context.Context) (EvaluationReport, error) {
	s.dealMu.Lock()
	defer s.dealMu.Unlock()

	now := s.clock.Now()
	report := EvaluationReport{EvaluatedAt: now, Alerts: []models.FollowUpAlert{}}

	alerts, err := s.GenerateFollowUpAlerts(ctx, now, s.policy.ThresholdDays)
	if err != nil {
		return report, err
	}
	report.Alerts = alerts
	report.Suppressed = s.IsNotificationSuppressed(now)
	if report.Suppressed {
		s.logger.Infof("Quiet window active, %d follow-up alerts held", len(alerts))
		return report, nil
	}

	for _, a := range alerts {
		d, err := s.stores.Deals.GetDeal(ctx, a.DealID)
		if err != nil {
			return report, fmt.Errorf("failed to reload deal %s: %w", a.DealID, err)
		}
		prev := d
		engagement.MarkAlerted(&d)
		if err := s.stores.Deals.SaveFollowUpState(ctx, d); err != nil {
			return report, fmt.Errorf("failed to mark deal %s alerted: %w", a.DealID, err)
		}

		task := newTask(models.TaskTypeFollowUp, followUpSubject(a), followUpBody(a), now)
		task.LeadID = d.LeadID
		task.DealID = a.DealID
		if s.QueueTask(task) {
			report.Queued++
			continue
		}
		// Dropped by a full queue: unmark so the next pass alerts again.
		if err := s.stores.Deals.SaveFollowUpState(ctx, prev); err != nil {
			return report, fmt.Errorf("failed to unmark deal %s: %w", a.DealID, err)
		}
	}
	s.logger.Infof("Evaluation pass at %s: %d alerts, %d queued", now.Format(time.RFC3339), len(alerts), report.Queued)
	return report, nil
}

func followUpSubject(a models.FollowUpAlert) string {
	return fmt.Sprintf("Seguimiento pendiente: %s", a.LeadName)
}

func followUpBody(a models.FollowUpAlert) string {
	return fmt.Sprintf("%d días sin contacto (fase %s).\nSugerencia: %s", a.DaysWithoutContact, a.Phase, a.SuggestedMessage)
}
