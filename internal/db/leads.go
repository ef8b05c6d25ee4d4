package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"engagement-service/internal/models"
)

func (d *DB) GetLead(ctx context.Context, id string) (models.Lead, error) {
	var l models.Lead
	err := d.Pool.QueryRow(ctx, `
		SELECT id, name, business_type, created_at, updated_at
		FROM leads WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.BusinessType, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Lead{}, fmt.Errorf("lead %s: %w", id, models.ErrNotFound)
		}
		return models.Lead{}, fmt.Errorf("failed to get lead %s: %w", id, err)
	}
	return l, nil
}

// ListLeads returns the leads of a business vertical, or all leads when businessType is empty.
func (d *DB) ListLeads(ctx context.Context, businessType string) ([]models.Lead, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, name, business_type, created_at, updated_at
		FROM leads
		WHERE $1 = '' OR business_type = $1
		ORDER BY created_at, id`, businessType)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.BusinessType, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leads: %w", err)
	}
	return leads, nil
}
