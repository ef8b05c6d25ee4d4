package services

import (
	"context"
	"time"

	"engagement-service/internal/models"
)

// ConversationStore holds the per-lead message logs.
type ConversationStore interface {
	GetMessages(ctx context.Context, leadID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, m models.Message) error
	MarkRead(ctx context.Context, leadID, messageID string, at time.Time) (models.Message, error)
}

// DealStore exposes the pipeline deals; only follow-up state is ever written back.
type DealStore interface {
	ListActiveDeals(ctx context.Context, businessType string) ([]models.Deal, error)
	GetDeal(ctx context.Context, id string) (models.Deal, error)
	SaveFollowUpState(ctx context.Context, d models.Deal) error
}

type LeadStore interface {
	GetLead(ctx context.Context, id string) (models.Lead, error)
	ListLeads(ctx context.Context, businessType string) ([]models.Lead, error)
}

type NotificationLog interface {
	CreateNotification(ctx context.Context, n models.Notification) error
}

// Notifier delivers a rendered notification through one channel.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Stores groups the collaborators a Service reads and writes.
type Stores struct {
	Conversations ConversationStore
	Deals         DealStore
	Leads         LeadStore
	Notifications NotificationLog
}
