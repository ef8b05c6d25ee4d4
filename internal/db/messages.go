package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"engagement-service/internal/engagement"
	"engagement-service/internal/models"
)

const uniqueViolation = "23505"

// GetMessages returns a lead's conversation ordered by append sequence.
func (d *DB) GetMessages(ctx context.Context, leadID string) ([]models.Message, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, lead_id, seq, direction, body, sent_at, read_at
		FROM messages
		WHERE lead_id = $1
		ORDER BY seq`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for lead %s: %w", leadID, err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages for lead %s: %w", leadID, err)
	}
	return msgs, nil
}

func (d *DB) AppendMessage(ctx context.Context, m models.Message) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO messages (id, lead_id, seq, direction, body, sent_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.LeadID, m.Seq, string(m.Direction), m.Body, m.Timestamp, m.ReadAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("message %s for lead %s: %w", m.ID, m.LeadID, models.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to append message %s for lead %s: %w", m.ID, m.LeadID, err)
	}
	return nil
}

// MarkRead sets read_at on an outbound message unless it was already read.
// Inbound messages are left untouched and reported as an integrity error.
func (d *DB) MarkRead(ctx context.Context, leadID, messageID string, at time.Time) (models.Message, error) {
	row := d.Pool.QueryRow(ctx, `
		UPDATE messages
		SET read_at = CASE WHEN direction = 'outbound' THEN COALESCE(read_at, $3) ELSE read_at END
		WHERE lead_id = $1 AND id = $2
		RETURNING id, lead_id, seq, direction, body, sent_at, read_at`,
		leadID, messageID, at)
	return scanReadReceipt(row, messageID)
}

func scanReadReceipt(row pgx.Row, messageID string) (models.Message, error) {
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
		}
		return models.Message{}, fmt.Errorf("failed to mark message %s read: %w", messageID, err)
	}
	if m.Direction != models.DirectionOutbound {
		return models.Message{}, engagement.DataIntegrityError("read_receipt_on_inbound_message", nil)
	}
	return m, nil
}

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	var direction string
	err := row.Scan(&m.ID, &m.LeadID, &m.Seq, &direction, &m.Body, &m.Timestamp, &m.ReadAt)
	m.Direction = models.Direction(direction)
	return m, err
}
