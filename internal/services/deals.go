package services

import (
	"context"
	"fmt"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

// MarkContacted records human contact on the deal and re-arms follow-up alerting.
func (s *Service) MarkContacted(ctx context.Context, dealID string) (models.Deal, error) {
	return s.mutateDeal(ctx, dealID, func(d *models.Deal) error {
		engagement.MarkContacted(d, s.clock.Now())
		return nil
	})
}

func (s *Service) Postpone(ctx context.Context, dealID string, days int) (models.Deal, error) {
	return s.mutateDeal(ctx, dealID, func(d *models.Deal) error {
		return engagement.Postpone(d, s.clock.Now(), days)
	})
}

func (s *Service) Discard(ctx context.Context, dealID string) (models.Deal, error) {
	return s.mutateDeal(ctx, dealID, func(d *models.Deal) error {
		p, err := s.pipelineFor(d.BusinessType)
		if err != nil {
			return err
		}
		return engagement.Discard(d, p)
	})
}

func (s *Service) pipelineFor(businessType string) (engagement.Pipeline, error) {
	g, ok := s.generators[businessType]
	if !ok {
		return engagement.Pipeline{}, engagement.ConfigurationError("unknown_business_type_"+businessType, nil)
	}
	return g.Pipeline(), nil
}

func (s *Service) mutateDeal(ctx context.Context, dealID string, fn func(*models.Deal) error) (models.Deal, error) {
	s.dealMu.Lock()
	defer s.dealMu.Unlock()

	d, err := s.stores.Deals.GetDeal(ctx, dealID)
	if err != nil {
		return models.Deal{}, err
	}
	if err := fn(&d); err != nil {
		return models.Deal{}, err
	}
	if err := s.stores.Deals.SaveFollowUpState(ctx, d); err != nil {
		return models.Deal{}, fmt.Errorf("failed to save deal %s: %w", dealID, err)
	}
	return d, nil
}
