package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"engagement-service/internal/models"
)

func (d *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	query := `
        INSERT INTO notifications (
            id, request_id, created_at, updated_at, type, subject, body,
            channel, status, lead_id, deal_id, error
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := d.Pool.Exec(ctx, query,
		uuid.UUID(n.ID), uuid.UUID(n.RequestID), n.CreatedAt, n.UpdatedAt, n.Type, n.Subject,
		n.Body, n.Channel, n.Status, n.LeadID, n.DealID, n.Error)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
