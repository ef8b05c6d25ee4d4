package engagement

import (
	"time"

	"engagement-service/internal/models"
)

const DefaultRiskFraction = 0.25

// SlaPolicy sets how long a lead may wait for a reply and how early the wait is flagged.
type SlaPolicy struct {
	DueThreshold time.Duration
	// RiskFraction of DueThreshold before the due instant at which a lead becomes at_risk.
	RiskFraction float64
}

func NewSlaPolicy(due time.Duration, riskFraction float64) (SlaPolicy, error) {
	p := SlaPolicy{DueThreshold: due, RiskFraction: riskFraction}
	if err := p.Validate(); err != nil {
		return SlaPolicy{}, err
	}
	return p, nil
}

func (p SlaPolicy) Validate() error {
	if p.DueThreshold <= 0 {
		return ConfigurationError("sla_due_threshold_not_positive", nil)
	}
	if p.RiskFraction < 0 || p.RiskFraction > 1 {
		return ConfigurationError("sla_risk_fraction_out_of_range", nil)
	}
	return nil
}

func (p SlaPolicy) RiskMargin() time.Duration {
	return time.Duration(float64(p.DueThreshold) * p.RiskFraction)
}

// DueAt is the instant a reply to a message received at lastInbound becomes overdue.
func (p SlaPolicy) DueAt(lastInbound time.Time) time.Time {
	return lastInbound.Add(p.DueThreshold)
}

// Classify maps the time remaining until the reply is due onto an SLA status.
func Classify(now, lastInbound time.Time, p SlaPolicy) models.SlaStatus {
	remaining := p.DueAt(lastInbound).Sub(now)
	switch {
	case remaining <= 0:
		return models.SlaOverdue
	case remaining <= p.RiskMargin():
		return models.SlaAtRisk
	default:
		return models.SlaOnTime
	}
}

// ClassifyConversation classifies the pending inbound message of a conversation.
// A conversation with nothing awaiting a reply is on_time.
func ClassifyConversation(now time.Time, messages []models.Message, p SlaPolicy) models.SlaStatus {
	pending, ok := PendingInbound(messages)
	if !ok {
		return models.SlaOnTime
	}
	return Classify(now, pending.Timestamp, p)
}
