package engagement

import (
	"slices"
	"time"

	"engagement-service/internal/models"
)

const CriticalHours = 24

func IsCritical(hoursWithoutResponse int) bool {
	return hoursWithoutResponse >= CriticalHours
}

// NewLeadUrgency derives the ranking inputs of a lead from its conversation.
func NewLeadUrgency(now time.Time, lead models.Lead, messages []models.Message, p SlaPolicy) models.LeadUrgency {
	hours := HoursWithoutResponse(now, messages)
	return models.LeadUrgency{
		Lead:                 lead,
		HoursWithoutResponse: hours,
		Critical:             IsCritical(hours),
		Sla:                  ClassifyConversation(now, messages, p),
	}
}

// CompareUrgency orders critical leads first, then by hours without response descending,
// then by most recent update.
func CompareUrgency(a, b models.LeadUrgency) int {
	ac, bc := IsCritical(a.HoursWithoutResponse), IsCritical(b.HoursWithoutResponse)
	if ac != bc {
		if ac {
			return -1
		}
		return 1
	}
	if a.HoursWithoutResponse != b.HoursWithoutResponse {
		if a.HoursWithoutResponse > b.HoursWithoutResponse {
			return -1
		}
		return 1
	}
	return b.Lead.UpdatedAt.Compare(a.Lead.UpdatedAt)
}

func ValidateUrgency(items []models.LeadUrgency) error {
	for _, it := range items {
		if it.HoursWithoutResponse < 0 {
			return DataIntegrityError("negative_hours_without_response_"+it.Lead.ID, nil)
		}
	}
	return nil
}

// RankByUrgency returns a stably sorted copy of items.
func RankByUrgency(items []models.LeadUrgency) ([]models.LeadUrgency, error) {
	if err := ValidateUrgency(items); err != nil {
		return nil, err
	}
	ranked := slices.Clone(items)
	slices.SortStableFunc(ranked, CompareUrgency)
	return ranked, nil
}
