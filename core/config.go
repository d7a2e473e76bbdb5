package core

import (
	"fmt"
	"strings"
	"time"
)

// DayPart is a named time-of-day bucket.
type DayPart string

const (
	DayPartMorning DayPart = "morning"
	DayPartLunch   DayPart = "lunch"
	DayPartEvening DayPart = "evening"
	DayPartNight   DayPart = "night"
)

var dayPartClock = map[DayPart][2]int{
	DayPartMorning: {8, 0},
	DayPartLunch:   {12, 30},
	DayPartEvening: {19, 0},
	DayPartNight:   {22, 0},
}

func ParseDayPart(s string) (DayPart, error) {
	p := DayPart(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := dayPartClock[p]; !ok {
		return "", fmt.Errorf("%w: unknown day part %q", ErrValidation, s)
	}
	return p, nil
}

// At returns the day part's clock time on date's calendar day, in date's location.
func (p DayPart) At(date time.Time) (time.Time, bool) {
	hm, ok := dayPartClock[p]
	if !ok {
		return time.Time{}, false
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hm[0], hm[1], 0, 0, date.Location()), true
}

// CapScope selects how MaxPostsPerDay is applied during recurring generation.
type CapScope string

const (
	// CapScopeDay limits each calendar day separately.
	CapScopeDay CapScope = "day"
	// CapScopeRun stops the whole generation once the cumulative count hits the cap.
	CapScopeRun CapScope = "run"
)

func ParseCapScope(s string) (CapScope, error) {
	switch c := CapScope(strings.ToLower(strings.TrimSpace(s))); c {
	case CapScopeDay, CapScopeRun:
		return c, nil
	case "":
		return CapScopeDay, nil
	}
	return "", fmt.Errorf("%w: unknown cap scope %q", ErrValidation, s)
}

// ScheduleConfig describes a recurring campaign. DaysOfWeek uses 0=Monday..6=Sunday.
type ScheduleConfig struct {
	Recurrence     Recurrence `json:"schedule_type" validate:"required,oneof=once daily weekly monthly"`
	Start          time.Time  `json:"start_time" validate:"required"`
	End            *time.Time `json:"end_time,omitempty"`
	IntervalHours  int        `json:"interval_hours" validate:"gte=1"`
	DaysOfWeek     []int      `json:"days_of_week" validate:"dive,gte=0,lte=6"`
	DayParts       []DayPart  `json:"optimal_time_slots" validate:"dive,oneof=morning lunch evening night"`
	MaxPostsPerDay int        `json:"max_posts_per_day" validate:"gte=1"`
	CapScope       CapScope   `json:"cap_scope" validate:"omitempty,oneof=day run"`
	Enabled        bool       `json:"enabled"`
}

// AllowsWeekday reports whether wd passes the DaysOfWeek filter. An empty
// filter allows every day.
func (c *ScheduleConfig) AllowsWeekday(wd time.Weekday) bool {
	if len(c.DaysOfWeek) == 0 {
		return true
	}
	idx := MondayIndex(wd)
	for _, d := range c.DaysOfWeek {
		if d == idx {
			return true
		}
	}
	return false
}

// MondayIndex maps time.Weekday (Sunday=0) to 0=Monday..6=Sunday.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// DefaultScheduleConfig mirrors the configuration created on first start.
func DefaultScheduleConfig(now time.Time) ScheduleConfig {
	return ScheduleConfig{
		Recurrence:     RecurrenceDaily,
		Start:          now,
		IntervalHours:  24,
		DaysOfWeek:     []int{0, 1, 2, 3, 4, 5, 6},
		DayParts:       []DayPart{DayPartMorning, DayPartEvening},
		MaxPostsPerDay: 3,
		CapScope:       CapScopeDay,
		Enabled:        true,
	}
}
