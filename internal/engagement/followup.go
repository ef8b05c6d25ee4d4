package engagement

import (
	"hash/fnv"
	"strings"
	"time"

	"engagement-service/internal/models"
)

const (
	DefaultTemplateKey = "default"
	namePlaceholder    = "{{name}}"
	day                = 24 * time.Hour
)

// Pipeline holds the phase vocabulary of one business vertical.
type Pipeline struct {
	TerminalPhases []string `yaml:"terminal_phases" json:"terminal_phases"`
	DiscardedPhase string   `yaml:"discarded_phase" json:"discarded_phase"`
}

func (p Pipeline) Validate() error {
	if p.DiscardedPhase == "" {
		return ConfigurationError("pipeline_missing_discarded_phase", nil)
	}
	for _, ph := range p.TerminalPhases {
		if ph == p.DiscardedPhase {
			return nil
		}
	}
	return ConfigurationError("pipeline_discarded_phase_not_terminal", nil)
}

func (p Pipeline) IsTerminal(phase string) bool {
	for _, ph := range p.TerminalPhases {
		if ph == phase {
			return true
		}
	}
	return false
}

// Templates maps a phase key to candidate follow-up messages. The "default" entry is required.
type Templates map[string][]string

func (t Templates) Validate() error {
	if len(t[DefaultTemplateKey]) == 0 {
		return ConfigurationError("templates_missing_default", nil)
	}
	for phase, candidates := range t {
		if len(candidates) == 0 {
			return ConfigurationError("templates_empty_phase_"+phase, nil)
		}
	}
	return nil
}

// Suggest picks a message for the phase, falling back to the default entry for unknown phases.
// The pick is stable per deal so repeated passes suggest the same text.
func (t Templates) Suggest(phase, dealID, leadName string) string {
	candidates := t[phase]
	if len(candidates) == 0 {
		candidates = t[DefaultTemplateKey]
	}
	if len(candidates) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(dealID))
	text := candidates[int(h.Sum32()%uint32(len(candidates)))]
	return strings.ReplaceAll(text, namePlaceholder, FirstName(leadName))
}

func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ContactReference is the instant staleness is measured from:
// last contact, then last activity, then last update, then creation.
func ContactReference(d models.Deal) (time.Time, error) {
	switch {
	case d.LastContact != nil && !d.LastContact.IsZero():
		return *d.LastContact, nil
	case d.LastActivity != nil && !d.LastActivity.IsZero():
		return *d.LastActivity, nil
	case !d.UpdatedAt.IsZero():
		return d.UpdatedAt, nil
	case !d.CreatedAt.IsZero():
		return d.CreatedAt, nil
	}
	return time.Time{}, DataIntegrityError("deal_without_timestamps_"+d.ID, nil)
}

// DaysWithoutContact counts whole days since the contact reference, clamped to zero so a
// postponed (future-dated) contact reads as fresh.
func DaysWithoutContact(now time.Time, d models.Deal) (int, error) {
	ref, err := ContactReference(d)
	if err != nil {
		return 0, err
	}
	return floorUnits(now.Sub(ref), day), nil
}

// FollowUpGenerator flags stale deals of one pipeline.
type FollowUpGenerator struct {
	pipeline  Pipeline
	templates Templates
}

func NewFollowUpGenerator(p Pipeline, t Templates) (*FollowUpGenerator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &FollowUpGenerator{pipeline: p, templates: t}, nil
}

func (g *FollowUpGenerator) Pipeline() Pipeline {
	return g.pipeline
}

// Generate returns an alert for every non-terminal deal that has gone thresholdDays or more
// without contact and has not been alerted since its last contact. Alerts keep input order.
func (g *FollowUpGenerator) Generate(now time.Time, deals []models.Deal, thresholdDays int) ([]models.FollowUpAlert, error) {
	if thresholdDays < 0 {
		return nil, ConfigurationError("follow_up_threshold_negative", nil)
	}
	alerts := make([]models.FollowUpAlert, 0)
	for _, d := range deals {
		if g.pipeline.IsTerminal(d.Phase) {
			continue
		}
		days, err := DaysWithoutContact(now, d)
		if err != nil {
			return nil, err
		}
		if days < thresholdDays || d.FollowUpNotificationSent {
			continue
		}
		alerts = append(alerts, models.FollowUpAlert{
			DealID:             d.ID,
			LeadName:           d.Name,
			DaysWithoutContact: days,
			SuggestedMessage:   g.templates.Suggest(d.Phase, d.ID, d.Name),
			Phase:              d.Phase,
		})
	}
	return alerts, nil
}
