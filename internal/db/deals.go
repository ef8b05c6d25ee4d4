package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"engagement-service/internal/models"
)

const dealColumns = `id, lead_id, name, business_type, phase, created_at, updated_at,
	last_contact, last_activity, follow_up_notification_sent`

// ListActiveDeals returns every deal of a business vertical; terminal phases are filtered by the engine.
func (d *DB) ListActiveDeals(ctx context.Context, businessType string) ([]models.Deal, error) {
	rows, err := d.Pool.Query(ctx, `SELECT `+dealColumns+`
		FROM deals
		WHERE business_type = $1
		ORDER BY created_at, id`, businessType)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals for %s: %w", businessType, err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deals for %s: %w", businessType, err)
	}
	return deals, nil
}

func (d *DB) GetDeal(ctx context.Context, id string) (models.Deal, error) {
	row := d.Pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Deal{}, fmt.Errorf("deal %s: %w", id, models.ErrNotFound)
		}
		return models.Deal{}, fmt.Errorf("failed to get deal %s: %w", id, err)
	}
	return deal, nil
}

// SaveFollowUpState writes only the columns the alerting engine owns.
func (d *DB) SaveFollowUpState(ctx context.Context, deal models.Deal) error {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE deals
		SET phase = $1,
		    last_contact = $2,
		    last_activity = $3,
		    follow_up_notification_sent = $4
		WHERE id = $5`,
		deal.Phase, deal.LastContact, deal.LastActivity, deal.FollowUpNotificationSent, deal.ID)
	if err != nil {
		return fmt.Errorf("failed to update deal %s: %w", deal.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deal %s: %w", deal.ID, models.ErrNotFound)
	}
	return nil
}

func scanDeal(row pgx.Row) (models.Deal, error) {
	var deal models.Deal
	var updatedAt *time.Time
	err := row.Scan(
		&deal.ID,
		&deal.LeadID,
		&deal.Name,
		&deal.BusinessType,
		&deal.Phase,
		&deal.CreatedAt,
		&updatedAt,
		&deal.LastContact,
		&deal.LastActivity,
		&deal.FollowUpNotificationSent,
	)
	if updatedAt != nil {
		deal.UpdatedAt = *updatedAt
	}
	return deal, err
}
