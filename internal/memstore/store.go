// Package memstore keeps leads, deals, conversations and the notification log in memory.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

type Store struct {
	mu            sync.RWMutex
	leads         map[string]models.Lead
	leadOrder     []string
	deals         map[string]models.Deal
	dealOrder     []string
	messages      map[string][]models.Message
	notifications []models.Notification
}

func New() *Store {
	return &Store{
		leads:    make(map[string]models.Lead),
		deals:    make(map[string]models.Deal),
		messages: make(map[string][]models.Message),
	}
}

// PutLead inserts or replaces a lead.
func (s *Store) PutLead(l models.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[l.ID]; !ok {
		s.leadOrder = append(s.leadOrder, l.ID)
	}
	s.leads[l.ID] = l
}

// PutDeal inserts or replaces a deal.
func (s *Store) PutDeal(d models.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deals[d.ID]; !ok {
		s.dealOrder = append(s.dealOrder, d.ID)
	}
	s.deals[d.ID] = cloneDeal(d)
}

func (s *Store) GetLead(_ context.Context, id string) (models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return models.Lead{}, fmt.Errorf("lead %s: %w", id, models.ErrNotFound)
	}
	return l, nil
}

func (s *Store) ListLeads(_ context.Context, businessType string) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Lead, 0, len(s.leadOrder))
	for _, id := range s.leadOrder {
		l := s.leads[id]
		if businessType == "" || l.BusinessType == businessType {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) ListActiveDeals(_ context.Context, businessType string) ([]models.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Deal, 0, len(s.dealOrder))
	for _, id := range s.dealOrder {
		d := s.deals[id]
		if d.BusinessType == businessType {
			out = append(out, cloneDeal(d))
		}
	}
	return out, nil
}

func (s *Store) GetDeal(_ context.Context, id string) (models.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deals[id]
	if !ok {
		return models.Deal{}, fmt.Errorf("deal %s: %w", id, models.ErrNotFound)
	}
	return cloneDeal(d), nil
}

// SaveFollowUpState writes the fields owned by the alerting engine; everything else is kept.
func (s *Store) SaveFollowUpState(_ context.Context, d models.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.deals[d.ID]
	if !ok {
		return fmt.Errorf("deal %s: %w", d.ID, models.ErrNotFound)
	}
	cur.Phase = d.Phase
	cur.LastContact = cloneTime(d.LastContact)
	cur.LastActivity = cloneTime(d.LastActivity)
	cur.FollowUpNotificationSent = d.FollowUpNotificationSent
	s.deals[d.ID] = cur
	return nil
}

func (s *Store) GetMessages(_ context.Context, leadID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[leadID]
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		m.ReadAt = cloneTime(m.ReadAt)
		out[i] = m
	}
	return out, nil
}

func (s *Store) AppendMessage(_ context.Context, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.messages[m.LeadID] {
		if existing.ID == m.ID {
			return fmt.Errorf("message %s for lead %s: %w", m.ID, m.LeadID, models.ErrDuplicate)
		}
	}
	m.ReadAt = cloneTime(m.ReadAt)
	s.messages[m.LeadID] = append(s.messages[m.LeadID], m)
	return nil
}

// MarkRead stamps an outbound message as read; the first read instant wins.
func (s *Store) MarkRead(_ context.Context, leadID, messageID string, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[leadID]
	for i := range msgs {
		if msgs[i].ID != messageID {
			continue
		}
		if msgs[i].Direction != models.DirectionOutbound {
			return models.Message{}, engagement.DataIntegrityError("read_receipt_on_inbound_message", nil)
		}
		if msgs[i].ReadAt == nil {
			msgs[i].ReadAt = cloneTime(&at)
		}
		out := msgs[i]
		out.ReadAt = cloneTime(out.ReadAt)
		return out, nil
	}
	return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
}

func (s *Store) CreateNotification(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// Notifications returns the notification log, oldest first.
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notifications)
}

func cloneDeal(d models.Deal) models.Deal {
	d.LastContact = cloneTime(d.LastContact)
	d.LastActivity = cloneTime(d.LastActivity)
	return d
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
