package models

import (
	"fmt"
	"time"

	"github.com/agnosto/autoposter/core"
)

// ActiveConfigID is the primary key of the single active campaign config row.
const ActiveConfigID = 1

type ScheduleConfig struct {
	ID             uint      `gorm:"primaryKey"`
	Recurrence     string    `gorm:"not null"`
	StartTime      time.Time `gorm:"not null"`
	EndTime        *time.Time
	IntervalHours  int
	DaysOfWeek     []int    `gorm:"serializer:json"`
	DayParts       []string `gorm:"serializer:json"`
	MaxPostsPerDay int
	CapScope       string
	Enabled        bool
	UpdatedAt      time.Time
}

// TableName overrides the table name
func (ScheduleConfig) TableName() string {
	return "schedule_configs"
}

func ScheduleConfigFromDomain(c *core.ScheduleConfig) ScheduleConfig {
	parts := make([]string, len(c.DayParts))
	for i, p := range c.DayParts {
		parts[i] = string(p)
	}
	return ScheduleConfig{
		ID:             ActiveConfigID,
		Recurrence:     string(c.Recurrence),
		StartTime:      c.Start.UTC(),
		EndTime:        utcPtr(c.End),
		IntervalHours:  c.IntervalHours,
		DaysOfWeek:     c.DaysOfWeek,
		DayParts:       parts,
		MaxPostsPerDay: c.MaxPostsPerDay,
		CapScope:       string(c.CapScope),
		Enabled:        c.Enabled,
	}
}

func (r *ScheduleConfig) ToDomain() (*core.ScheduleConfig, error) {
	rec, err := core.ParseRecurrence(r.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("schedule config: %w", err)
	}
	scope, err := core.ParseCapScope(r.CapScope)
	if err != nil {
		return nil, fmt.Errorf("schedule config: %w", err)
	}
	parts := make([]core.DayPart, 0, len(r.DayParts))
	for _, s := range r.DayParts {
		p, err := core.ParseDayPart(s)
		if err != nil {
			return nil, fmt.Errorf("schedule config: %w", err)
		}
		parts = append(parts, p)
	}
	return &core.ScheduleConfig{
		Recurrence:     rec,
		Start:          r.StartTime.Local(),
		End:            localPtr(r.EndTime),
		IntervalHours:  r.IntervalHours,
		DaysOfWeek:     r.DaysOfWeek,
		DayParts:       parts,
		MaxPostsPerDay: r.MaxPostsPerDay,
		CapScope:       scope,
		Enabled:        r.Enabled,
	}, nil
}
