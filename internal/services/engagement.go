package services

import (
	"context"
	"fmt"
	"time"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

// ClassifySla classifies the lead's outstanding inbound message against the SLA policy.
func (s *Service) ClassifySla(ctx context.Context, leadID string, now time.Time) (models.SlaStatus, error) {
	msgs, err := s.stores.Conversations.GetMessages(ctx, leadID)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation for lead %s: %w", leadID, err)
	}
	return engagement.ClassifyConversation(now, msgs, s.policy.Sla), nil
}

func (s *Service) HoursWithoutResponse(ctx context.Context, leadID string, now time.Time) (int, error) {
	msgs, err := s.stores.Conversations.GetMessages(ctx, leadID)
	if err != nil {
		return 0, fmt.Errorf("failed to load conversation for lead %s: %w", leadID, err)
	}
	return engagement.HoursWithoutResponse(now, msgs), nil
}

// GenerateFollowUpAlerts runs the generator of every business type in name order.
// A negative thresholdDays uses the configured default.
func (s *Service) GenerateFollowUpAlerts(ctx context.Context, now time.Time, thresholdDays int) ([]models.FollowUpAlert, error) {
	if thresholdDays < 0 {
		thresholdDays = s.policy.ThresholdDays
	}
	alerts := make([]models.FollowUpAlert, 0)
	for _, bt := range s.policy.BusinessTypes() {
		deals, err := s.stores.Deals.ListActiveDeals(ctx, bt)
		if err != nil {
			return nil, fmt.Errorf("failed to list deals for %s: %w", bt, err)
		}
		found, err := s.generators[bt].Generate(now, deals, thresholdDays)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, found...)
	}
	return alerts, nil
}

func (s *Service) IsNotificationSuppressed(now time.Time) bool {
	return s.policy.Quiet.IsSuppressed(now)
}

// RankLeadsByUrgency annotates leads with their conversation state and returns them in
// display order.
func (s *Service) RankLeadsByUrgency(ctx context.Context, leads []models.Lead, now time.Time) ([]models.LeadUrgency, error) {
	items := make([]models.LeadUrgency, 0, len(leads))
	for _, l := range leads {
		msgs, err := s.stores.Conversations.GetMessages(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation for lead %s: %w", l.ID, err)
		}
		items = append(items, engagement.NewLeadUrgency(now, l, msgs, s.policy.Sla))
	}
	return engagement.RankByUrgency(items)
}

// RankBusinessType ranks the stored leads of one vertical; an empty businessType ranks all.
func (s *Service) RankBusinessType(ctx context.Context, businessType string, now time.Time) ([]models.LeadUrgency, error) {
	leads, err := s.stores.Leads.ListLeads(ctx, businessType)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return s.RankLeadsByUrgency(ctx, leads, now)
}
