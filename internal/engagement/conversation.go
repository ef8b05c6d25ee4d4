package engagement

import (
	"time"

	"engagement-service/internal/models"
)

// LastInbound returns the inbound message with the greatest timestamp.
// The log may be appended out of order, so position is never used.
func LastInbound(messages []models.Message) (models.Message, bool) {
	var last models.Message
	found := false
	for _, m := range messages {
		if !m.IsInbound() {
			continue
		}
		if !found || m.Timestamp.After(last.Timestamp) {
			last = m
			found = true
		}
	}
	return last, found
}

// PendingInbound returns the latest inbound message when no outbound message is strictly
// later than it. An answered or empty conversation has nothing pending.
func PendingInbound(messages []models.Message) (models.Message, bool) {
	last, ok := LastInbound(messages)
	if !ok {
		return models.Message{}, false
	}
	for _, m := range messages {
		if m.Direction == models.DirectionOutbound && m.Timestamp.After(last.Timestamp) {
			return models.Message{}, false
		}
	}
	return last, true
}

// HoursWithoutResponse is the whole number of hours the lead's latest message has waited
// for a reply. It is 0 for empty, inbound-free or answered conversations.
func HoursWithoutResponse(now time.Time, messages []models.Message) int {
	pending, ok := PendingInbound(messages)
	if !ok {
		return 0
	}
	return floorUnits(now.Sub(pending.Timestamp), time.Hour)
}

// ValidateMessage rejects messages that cannot be placed in a conversation log.
func ValidateMessage(m models.Message) error {
	switch {
	case m.LeadID == "":
		return DataIntegrityError("message_missing_lead_id", nil)
	case !m.Direction.Valid():
		return DataIntegrityError("message_invalid_direction", nil)
	case m.Timestamp.IsZero():
		return DataIntegrityError("message_missing_timestamp", nil)
	case m.ReadAt != nil && m.Direction != models.DirectionOutbound:
		return DataIntegrityError("read_receipt_on_inbound_message", nil)
	}
	return nil
}

// floorUnits counts complete units in d, clamped to zero.
func floorUnits(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / unit)
}
