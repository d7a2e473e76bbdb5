package models

import (
	"fmt"
	"time"

	"github.com/agnosto/autoposter/core"
)

type Schedule struct {
	ID            string    `gorm:"primaryKey"`
	PostID        string    `gorm:"index;not null"`
	ScheduledTime time.Time `gorm:"index;not null"`
	Recurrence    string    `gorm:"not null"`
	Status        string    `gorm:"index;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	ExecutedAt    *time.Time
	ErrorMessage  string
	Version       int `gorm:"not null"`
}

// TableName overrides the table name
func (Schedule) TableName() string {
	return "schedules"
}

func ScheduleFromDomain(s *core.Schedule) Schedule {
	return Schedule{
		ID:            s.ID,
		PostID:        s.PostID,
		ScheduledTime: s.ScheduledTime.UTC(),
		Recurrence:    string(s.Recurrence),
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt.UTC(),
		ExecutedAt:    utcPtr(s.ExecutedAt),
		ErrorMessage:  s.ErrorMessage,
		Version:       s.Version,
	}
}

func (r *Schedule) ToDomain() (*core.Schedule, error) {
	status, err := core.ParseScheduleStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", r.ID, err)
	}
	rec, err := core.ParseRecurrence(r.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", r.ID, err)
	}
	return &core.Schedule{
		ID:            r.ID,
		PostID:        r.PostID,
		ScheduledTime: r.ScheduledTime.Local(),
		Recurrence:    rec,
		Status:        status,
		CreatedAt:     r.CreatedAt.Local(),
		ExecutedAt:    localPtr(r.ExecutedAt),
		ErrorMessage:  r.ErrorMessage,
		Version:       r.Version,
	}, nil
}
