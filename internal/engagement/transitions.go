package engagement

import (
	"time"

	"engagement-service/internal/models"
)

// MarkContacted records human contact and re-arms follow-up alerting.
func MarkContacted(d *models.Deal, now time.Time) {
	contact, activity := now, now
	d.LastContact = &contact
	d.LastActivity = &activity
	d.FollowUpNotificationSent = false
}

// Postpone moves the contact checkpoint days into the future so the deal stays quiet until then.
func Postpone(d *models.Deal, now time.Time, days int) error {
	if days <= 0 {
		return newError(ErrorInvalidInput, "postpone_days_not_positive", nil)
	}
	checkpoint := now.Add(time.Duration(days) * day)
	d.LastContact = &checkpoint
	d.FollowUpNotificationSent = false
	return nil
}

// Discard closes the deal in the pipeline's discarded phase; alerts never fire for it again.
func Discard(d *models.Deal, p Pipeline) error {
	if p.DiscardedPhase == "" {
		return ConfigurationError("pipeline_missing_discarded_phase", nil)
	}
	d.Phase = p.DiscardedPhase
	d.FollowUpNotificationSent = true
	return nil
}

// MarkAlerted records that a follow-up alert for the deal has been surfaced.
func MarkAlerted(d *models.Deal) {
	d.FollowUpNotificationSent = true
}
