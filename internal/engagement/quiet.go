package engagement

import (
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MuteSchedule is the quiet window during which notifications are suppressed.
// StartHour > EndHour means the window crosses midnight. Weekdays use 0=Sunday..6=Saturday.
type MuteSchedule struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	StartHour int    `yaml:"start_hour" json:"start_hour" validate:"min=0,max=23"`
	EndHour   int    `yaml:"end_hour" json:"end_hour" validate:"min=0,max=23"`
	MuteDays  []int  `yaml:"mute_days" json:"mute_days" validate:"dive,min=0,max=6"`
	Timezone  string `yaml:"timezone" json:"timezone" validate:"required_if=Enabled true"`
}

// Location resolves the schedule timezone. A disabled schedule without one uses UTC.
func (s MuteSchedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, ConfigurationError("mute_schedule_unknown_timezone", err)
	}
	return loc, nil
}

func (s MuteSchedule) Validate() error {
	if err := validate.Struct(s); err != nil {
		return ConfigurationError("invalid_mute_schedule", err)
	}
	_, err := s.Location()
	return err
}

// QuietWindow is a validated MuteSchedule bound to its timezone.
type QuietWindow struct {
	schedule MuteSchedule
	loc      *time.Location
}

// NewQuietWindow validates the schedule up front so gating never sees bad hours or days.
func NewQuietWindow(s MuteSchedule) (*QuietWindow, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	loc, err := s.Location()
	if err != nil {
		return nil, err
	}
	return &QuietWindow{schedule: s, loc: loc}, nil
}

func (q *QuietWindow) Schedule() MuteSchedule {
	return q.schedule
}

// IsSuppressed on a nil window is always false.
func (q *QuietWindow) IsSuppressed(now time.Time) bool {
	if q == nil {
		return false
	}
	return IsSuppressed(now, q.schedule, q.loc)
}

// IsSuppressed reports whether now falls inside the schedule's hour window or on a muted day,
// evaluated in loc. The schedule is assumed valid.
func IsSuppressed(now time.Time, s MuteSchedule, loc *time.Location) bool {
	if !s.Enabled {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return inHourWindow(local.Hour(), s.StartHour, s.EndHour) || mutedDay(s.MuteDays, local.Weekday())
}

// inHourWindow is half-open: start inclusive, end exclusive. start == end is an empty window.
func inHourWindow(hour, start, end int) bool {
	if start <= end {
		return start <= hour && hour < end
	}
	return hour >= start || hour < end
}

func mutedDay(days []int, wd time.Weekday) bool {
	for _, d := range days {
		if d == int(wd) {
			return true
		}
	}
	return false
}
