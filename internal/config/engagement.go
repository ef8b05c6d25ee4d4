package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"engagement-service/internal/engagement"
)

// EngagementConfig is the alerting policy: SLA, follow-up threshold, quiet window,
// per-vertical phase vocabulary and follow-up message templates.
type EngagementConfig struct {
	Sla struct {
		DueHours     float64  `yaml:"due_hours"`
		RiskFraction *float64 `yaml:"risk_fraction"`
	} `yaml:"sla"`
	FollowUp struct {
		ThresholdDays *int `yaml:"threshold_days"`
	} `yaml:"follow_up"`
	QuietWindow engagement.MuteSchedule        `yaml:"quiet_window"`
	Pipelines   map[string]engagement.Pipeline `yaml:"pipelines"`
	Templates   engagement.Templates           `yaml:"templates"`
}

// Policy is the validated, engine-ready form of EngagementConfig.
type Policy struct {
	Sla           engagement.SlaPolicy
	ThresholdDays int
	Quiet         *engagement.QuietWindow
	Pipelines     map[string]engagement.Pipeline
	Templates     engagement.Templates
}

// BusinessTypes returns the configured verticals in a stable order.
func (p Policy) BusinessTypes() []string {
	out := make([]string, 0, len(p.Pipelines))
	for bt := range p.Pipelines {
		out = append(out, bt)
	}
	sort.Strings(out)
	return out
}

// LoadEngagement reads and validates the policy file.
func LoadEngagement(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read engagement config %s: %w", path, err)
	}
	return ParseEngagement(raw)
}

// ParseEngagement decodes YAML and fails fast on any invalid setting.
func ParseEngagement(raw []byte) (Policy, error) {
	var ec EngagementConfig
	if err := yaml.Unmarshal(raw, &ec); err != nil {
		return Policy{}, engagement.ConfigurationError("engagement_yaml_invalid", err)
	}
	return ec.Policy()
}

func (ec EngagementConfig) Policy() (Policy, error) {
	fraction := engagement.DefaultRiskFraction
	if ec.Sla.RiskFraction != nil {
		fraction = *ec.Sla.RiskFraction
	}
	sla, err := engagement.NewSlaPolicy(time.Duration(ec.Sla.DueHours*float64(time.Hour)), fraction)
	if err != nil {
		return Policy{}, err
	}

	threshold := 3
	if ec.FollowUp.ThresholdDays != nil {
		threshold = *ec.FollowUp.ThresholdDays
	}
	if threshold < 0 {
		return Policy{}, engagement.ConfigurationError("follow_up_threshold_negative", nil)
	}

	quiet, err := engagement.NewQuietWindow(ec.QuietWindow)
	if err != nil {
		return Policy{}, err
	}

	if len(ec.Pipelines) == 0 {
		return Policy{}, engagement.ConfigurationError("no_pipelines_configured", nil)
	}
	for bt, p := range ec.Pipelines {
		if err := p.Validate(); err != nil {
			return Policy{}, fmt.Errorf("pipeline %s: %w", bt, err)
		}
	}
	if err := ec.Templates.Validate(); err != nil {
		return Policy{}, err
	}

	return Policy{
		Sla:           sla,
		ThresholdDays: threshold,
		Quiet:         quiet,
		Pipelines:     ec.Pipelines,
		Templates:     ec.Templates,
	}, nil
}
