package memstore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"engagement-service/internal/models"
)

type seedFile struct {
	Leads []struct {
		ID           string    `yaml:"id"`
		Name         string    `yaml:"name"`
		BusinessType string    `yaml:"business_type"`
		CreatedAt    time.Time `yaml:"created_at"`
		UpdatedAt    time.Time `yaml:"updated_at"`
	} `yaml:"leads"`
	Deals []struct {
		ID           string     `yaml:"id"`
		LeadID       string     `yaml:"lead_id"`
		Name         string     `yaml:"name"`
		BusinessType string     `yaml:"business_type"`
		Phase        string     `yaml:"phase"`
		CreatedAt    time.Time  `yaml:"created_at"`
		UpdatedAt    time.Time  `yaml:"updated_at"`
		LastContact  *time.Time `yaml:"last_contact"`
		LastActivity *time.Time `yaml:"last_activity"`
	} `yaml:"deals"`
}

// LoadSeed reads leads and deals from a YAML file into the store and returns how many of each it put.
func (s *Store) LoadSeed(path string) (leads, deals int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return s.loadSeed(raw)
}

func (s *Store) loadSeed(raw []byte) (int, int, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, 0, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, l := range f.Leads {
		if l.ID == "" {
			return 0, 0, fmt.Errorf("seed lead #%d has no id", i)
		}
	}
	for i, d := range f.Deals {
		if d.ID == "" || d.BusinessType == "" {
			return 0, 0, fmt.Errorf("seed deal #%d needs id and business_type", i)
		}
	}

	for _, l := range f.Leads {
		s.PutLead(models.Lead{ID: l.ID, Name: l.Name, BusinessType: l.BusinessType, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt})
	}
	for _, d := range f.Deals {
		s.PutDeal(models.Deal{
			ID: d.ID, LeadID: d.LeadID, Name: d.Name, BusinessType: d.BusinessType, Phase: d.Phase,
			CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, LastContact: d.LastContact, LastActivity: d.LastActivity,
		})
	}
	return len(f.Leads), len(f.Deals), nil
}
