package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

// AppendMessage assigns an id and the lead's next sequence number, stores the message and
// raises the new-message event.
func (s *Service) AppendMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.clock.Now()
	}
	if err := engagement.ValidateMessage(m); err != nil {
		return models.Message{}, err
	}

	seq, err := s.seq.Next(ctx, m.LeadID)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to assign sequence for lead %s: %w", m.LeadID, err)
	}
	m.Seq = seq

	if err := s.stores.Conversations.AppendMessage(ctx, m); err != nil {
		return models.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	s.OnMessageAppended(ctx, m)
	return m, nil
}

// MarkRead records that the lead read an outbound message at the clock's current instant.
func (s *Service) MarkRead(ctx context.Context, leadID, messageID string) (models.Message, error) {
	return s.MarkReadAt(ctx, leadID, messageID, s.clock.Now())
}

func (s *Service) MarkReadAt(ctx context.Context, leadID, messageID string, at time.Time) (models.Message, error) {
	m, err := s.stores.Conversations.MarkRead(ctx, leadID, messageID, at)
	if err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// OnMessageAppended notifies about a new inbound message unless the quiet window is active,
// in which case the notification is only logged as silenced. Outbound messages never notify.
func (s *Service) OnMessageAppended(ctx context.Context, m models.Message) {
	if !m.IsInbound() {
		return
	}

	name := m.LeadID
	lead, err := s.stores.Leads.GetLead(ctx, m.LeadID)
	switch {
	case err == nil:
		name = lead.Name
	case errors.Is(err, models.ErrNotFound):
		s.logger.Debugf("Lead %s not in lead store, notifying by id", m.LeadID)
	default:
		s.logger.Warnf("Failed to load lead %s: %v", m.LeadID, err)
	}

	task := newTask(models.TaskTypeNewMessage, fmt.Sprintf("Nuevo mensaje de %s", name), m.Body, m.Timestamp)
	task.LeadID = m.LeadID
	task.Silenced = s.IsNotificationSuppressed(s.clock.Now())
	s.QueueTask(task)
}
