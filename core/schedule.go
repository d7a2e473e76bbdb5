package core

import (
	"fmt"
	"strings"
	"time"
)

type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusExecuted  ScheduleStatus = "executed"
	ScheduleStatusFailed    ScheduleStatus = "failed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

func ParseScheduleStatus(s string) (ScheduleStatus, error) {
	switch st := ScheduleStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case ScheduleStatusPending, ScheduleStatusExecuted, ScheduleStatusFailed, ScheduleStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown schedule status %q", ErrValidation, s)
}

// Terminal reports whether no further transition is allowed.
func (s ScheduleStatus) Terminal() bool {
	return s != ScheduleStatusPending
}

// CanTransition allows only pending -> executed|failed|cancelled.
func (s ScheduleStatus) CanTransition(to ScheduleStatus) bool {
	return s == ScheduleStatusPending && to != ScheduleStatusPending
}

type Recurrence string

const (
	RecurrenceOnce    Recurrence = "once"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown recurrence %q", ErrValidation, s)
}

// GenericFailureMessage is recorded on a schedule whose publish returned false.
const GenericFailureMessage = "publish execution failed"

type Schedule struct {
	ID            string
	PostID        string
	ScheduledTime time.Time
	Recurrence    Recurrence
	Status        ScheduleStatus
	CreatedAt     time.Time
	ExecutedAt    *time.Time
	ErrorMessage  string
	Version       int
}

// Transition moves the schedule forward, refusing anything but a pending
// source state.
func (s *Schedule) Transition(to ScheduleStatus) error {
	if !s.Status.CanTransition(to) {
		return fmt.Errorf("%w: schedule %s cannot move from %s to %s", ErrValidation, s.ID, s.Status, to)
	}
	s.Status = to
	return nil
}

// Statistics summarises the schedule store.
type Statistics struct {
	Total       int     `json:"total_schedules"`
	Pending     int     `json:"pending_schedules"`
	Executed    int     `json:"executed_schedules"`
	Failed      int     `json:"failed_schedules"`
	Cancelled   int     `json:"cancelled_schedules"`
	Today       int     `json:"today_schedules"`
	SuccessRate float64 `json:"success_rate"`
}

// ComputeStatistics counts schedules by status. Today counts schedules whose
// scheduled time falls on now's calendar day in now's location.
func ComputeStatistics(schedules []Schedule, now time.Time) Statistics {
	var st Statistics
	y, m, d := now.Date()
	for _, s := range schedules {
		st.Total++
		switch s.Status {
		case ScheduleStatusPending:
			st.Pending++
		case ScheduleStatusExecuted:
			st.Executed++
		case ScheduleStatusFailed:
			st.Failed++
		case ScheduleStatusCancelled:
			st.Cancelled++
		}
		sy, sm, sd := s.ScheduledTime.In(now.Location()).Date()
		if sy == y && sm == m && sd == d {
			st.Today++
		}
	}
	if st.Total > 0 {
		st.SuccessRate = float64(st.Executed) / float64(st.Total) * 100
	}
	return st
}
