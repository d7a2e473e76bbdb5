package service

import (
	"fmt"
	"maps"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RecurringOptions tune one CreateRecurringSchedule call.
type RecurringOptions struct {
	// Vars are extra template variables. "date" (2006-01-02) and "time"
	// (15:04) are set per slot and win over entries here.
	Vars map[string]string
	// OnCreate is called after each schedule is created, inside the
	// generation transaction.
	OnCreate func(core.Schedule)
}

// CreateRecurringSchedule expands cfg into dated posts and pending schedules
// built from templateName. An excluded weekday advances one day; an allowed
// day contributes the future day-part slots that fall inside [start, end] and
// then steps by the config's recurrence. MaxPostsPerDay applies per calendar
// day, or to the whole run with CapScopeRun. Generation also stops at the
// scheduler's MaxGeneratedSchedules limit and at MaxGenerationDays calendar
// days after the start day. Either every schedule is created or none is.
func (s *Scheduler) CreateRecurringSchedule(templateName string, cfg core.ScheduleConfig, opts RecurringOptions) ([]core.Schedule, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	now := s.now()
	loc := cfg.Start.Location()
	day := utils.StartOfDay(cfg.Start)
	horizon := day.AddDate(0, 0, s.opts.MaxGenerationDays)
	anchorDay := day.Day()

	var created []core.Schedule
	err := s.store.Atomic(func(tx *repository.Store) error {
		if _, err := tx.Templates.Get(templateName); err != nil {
			return err
		}

	days:
		for day.Before(horizon) {
			if cfg.End != nil && day.After(cfg.End.In(loc)) {
				break
			}
			if !cfg.AllowsWeekday(day.Weekday()) {
				day = day.AddDate(0, 0, 1)
				anchorDay = day.Day()
				continue
			}

			perDay := 0
			for _, slot := range core.Suggest(day, cfg.DayParts, len(cfg.DayParts), now) {
				if slot.Before(cfg.Start) || (cfg.End != nil && slot.After(*cfg.End)) {
					continue
				}
				if cfg.CapScope == core.CapScopeRun && len(created) >= cfg.MaxPostsPerDay {
					break days
				}
				if cfg.CapScope == core.CapScopeDay && perDay >= cfg.MaxPostsPerDay {
					break
				}
				if len(created) >= s.opts.MaxGeneratedSchedules {
					s.log.WithField("limit", s.opts.MaxGeneratedSchedules).Warn("Recurring generation hit the schedule limit")
					break days
				}

				sched, err := s.createSlot(tx, templateName, cfg.Recurrence, slot, opts.Vars)
				if err != nil {
					return err
				}
				created = append(created, *sched)
				perDay++
				if opts.OnCreate != nil {
					opts.OnCreate(*sched)
				}
			}

			if cfg.Recurrence == core.RecurrenceOnce {
				break
			}
			day = nextDay(day, cfg.Recurrence, anchorDay)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.generated(len(created))
	s.log.WithFields(logrus.Fields{
		"template":   templateName,
		"recurrence": cfg.Recurrence,
		"created":    len(created),
	}).Info("Recurring schedules created")
	return created, nil
}

func (s *Scheduler) createSlot(tx *repository.Store, templateName string, rec core.Recurrence, slot time.Time, extra map[string]string) (*core.Schedule, error) {
	vars := make(map[string]string, len(extra)+2)
	maps.Copy(vars, extra)
	vars["date"] = slot.Format("2006-01-02")
	vars["time"] = slot.Format("15:04")

	post, err := s.manager.CreateFromTemplateTx(tx, templateName, vars, &slot)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", slot.Format(time.RFC3339), err)
	}
	sched := &core.Schedule{
		ID:            uuid.NewString(),
		PostID:        post.ID,
		ScheduledTime: slot,
		Recurrence:    rec,
		Status:        core.ScheduleStatusPending,
		CreatedAt:     s.now(),
	}
	if err := tx.Schedules.Create(sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// nextDay steps a start-of-day timestamp by one recurrence period. Monthly
// steps keep anchorDay, clamped to the length of the month.
func nextDay(day time.Time, rec core.Recurrence, anchorDay int) time.Time {
	switch rec {
	case core.RecurrenceWeekly:
		return day.AddDate(0, 0, 7)
	case core.RecurrenceMonthly:
		return utils.AddMonthsClamped(day, 1, anchorDay)
	default:
		return day.AddDate(0, 0, 1)
	}
}
