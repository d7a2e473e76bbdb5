package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/logger"
	"github.com/agnosto/autoposter/posts"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultScheduleListLimit = 50

// Notifier is told about every schedule the executor finishes.
type Notifier interface {
	NotifyPublished(post *core.Post, schedule *core.Schedule)
	NotifyFailed(post *core.Post, schedule *core.Schedule, reason string)
}

// DueSource yields the pending schedules that are due at now.
type DueSource interface {
	Due(now time.Time) ([]core.Schedule, error)
}

type Options struct {
	PollInterval           time.Duration
	ValidatePostOnSchedule bool
	MaxGeneratedSchedules  int
	MaxGenerationDays      int
}

func DefaultOptions() Options {
	return Options{
		PollInterval:           time.Minute,
		ValidatePostOnSchedule: true,
		MaxGeneratedSchedules:  500,
		MaxGenerationDays:      366,
	}
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

func WithDueSource(src DueSource) Option {
	return func(s *Scheduler) { s.due = src }
}

// Scheduler owns the schedule state machine and the executor loop.
type Scheduler struct {
	manager  *posts.Manager
	store    *repository.Store
	opts     Options
	log      logrus.FieldLogger
	now      func() time.Time
	metrics  *Metrics
	notifier Notifier
	due      DueSource

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler builds a scheduler over the manager's store and makes sure an
// active ScheduleConfig exists.
func NewScheduler(manager *posts.Manager, opts Options, options ...Option) (*Scheduler, error) {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.MaxGeneratedSchedules <= 0 {
		opts.MaxGeneratedSchedules = def.MaxGeneratedSchedules
	}
	if opts.MaxGenerationDays <= 0 {
		opts.MaxGenerationDays = def.MaxGenerationDays
	}

	s := &Scheduler{
		manager:  manager,
		store:    manager.Store(),
		opts:     opts,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.log = logger.Or(s.log)
	if s.due == nil {
		s.due = s.store.Schedules
	}

	if err := s.ensureConfig(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) ensureConfig() error {
	_, err := s.store.Config.Get()
	if err == nil || !errors.Is(err, core.ErrNotFound) {
		return err
	}
	cfg := core.DefaultScheduleConfig(s.now())
	if err := s.store.Config.Save(&cfg); err != nil {
		return err
	}
	s.log.Info("Stored default schedule config")
	return nil
}

// SchedulePost creates a pending schedule for postID at at. With post
// validation on, the post must exist, must not be posted and must not have
// another pending schedule; it is moved to scheduled in the same transaction.
func (s *Scheduler) SchedulePost(postID string, at time.Time, recurrence core.Recurrence) (*core.Schedule, error) {
	rec, err := core.ParseRecurrence(string(recurrence))
	if err != nil {
		return nil, err
	}
	if postID == "" {
		return nil, fmt.Errorf("%w: post id is empty", core.ErrValidation)
	}

	sched := &core.Schedule{
		ID:            uuid.NewString(),
		PostID:        postID,
		ScheduledTime: at,
		Recurrence:    rec,
		Status:        core.ScheduleStatusPending,
		CreatedAt:     s.now(),
	}

	err = s.store.Atomic(func(tx *repository.Store) error {
		if s.opts.ValidatePostOnSchedule {
			if _, err := s.manager.SchedulePostTx(tx, postID, at); err != nil {
				return err
			}
			pending, err := tx.Schedules.HasPending(postID)
			if err != nil {
				return err
			}
			if pending {
				return fmt.Errorf("%w: post %s already has a pending schedule", core.ErrValidation, postID)
			}
		}
		return tx.Schedules.Create(sched)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"schedule_id":    sched.ID,
		"post_id":        postID,
		"scheduled_time": at,
	}).Info("Schedule created")
	return sched, nil
}

// CancelSchedule moves a pending schedule to cancelled. It returns false for
// unknown or terminal schedules and for one the executor is publishing.
func (s *Scheduler) CancelSchedule(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[id]; busy {
		s.log.WithField("schedule_id", id).Warn("Schedule is being executed, not cancelled")
		return false, nil
	}

	cancelled := false
	err := s.store.Atomic(func(tx *repository.Store) error {
		sched, err := tx.Schedules.Get(id)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !sched.Status.CanTransition(core.ScheduleStatusCancelled) {
			return nil
		}
		if err := sched.Transition(core.ScheduleStatusCancelled); err != nil {
			return err
		}
		if err := tx.Schedules.Update(sched); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled {
		s.log.WithField("schedule_id", id).Info("Schedule cancelled")
	}
	return cancelled, nil
}

func (s *Scheduler) GetSchedule(id string) (*core.Schedule, error) {
	return s.store.Schedules.Get(id)
}

// ListSchedules returns schedules latest first. An empty status means any;
// a zero limit means 50.
func (s *Scheduler) ListSchedules(status core.ScheduleStatus, limit int) ([]core.Schedule, error) {
	if status != "" {
		if _, err := core.ParseScheduleStatus(string(status)); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = defaultScheduleListLimit
	}
	return s.store.Schedules.List(repository.ScheduleFilter{Status: status, Limit: limit})
}

func (s *Scheduler) ListPending() ([]core.Schedule, error) {
	return s.store.Schedules.List(repository.ScheduleFilter{Status: core.ScheduleStatusPending})
}

// SuggestOptimalTimes proposes up to max future times on date from the
// active config's day parts.
func (s *Scheduler) SuggestOptimalTimes(date time.Time, max int) ([]time.Time, error) {
	cfg, err := s.store.Config.Get()
	if err != nil {
		return nil, err
	}
	return core.Suggest(date, cfg.DayParts, max, s.now()), nil
}

func (s *Scheduler) Statistics() (core.Statistics, error) {
	all, err := s.store.Schedules.List(repository.ScheduleFilter{})
	if err != nil {
		return core.Statistics{}, err
	}
	return core.ComputeStatistics(all, s.now()), nil
}

func (s *Scheduler) Config() (*core.ScheduleConfig, error) {
	return s.store.Config.Get()
}

// ConfigUpdate carries the fields to change; nil fields are left alone.
type ConfigUpdate struct {
	Recurrence     *core.Recurrence
	Start          *time.Time
	End            *time.Time
	ClearEnd       bool
	IntervalHours  *int
	DaysOfWeek     *[]int
	DayParts       *[]core.DayPart
	MaxPostsPerDay *int
	CapScope       *core.CapScope
	Enabled        *bool
}

// UpdateConfig applies upd to the active config and stores it if the result
// is valid.
func (s *Scheduler) UpdateConfig(upd ConfigUpdate) (*core.ScheduleConfig, error) {
	var updated *core.ScheduleConfig
	err := s.store.Atomic(func(tx *repository.Store) error {
		cfg, err := tx.Config.Get()
		if err != nil {
			return err
		}
		if upd.Recurrence != nil {
			cfg.Recurrence = *upd.Recurrence
		}
		if upd.Start != nil {
			cfg.Start = *upd.Start
		}
		if upd.ClearEnd {
			cfg.End = nil
		}
		if upd.End != nil {
			end := *upd.End
			cfg.End = &end
		}
		if upd.IntervalHours != nil {
			cfg.IntervalHours = *upd.IntervalHours
		}
		if upd.DaysOfWeek != nil {
			cfg.DaysOfWeek = append([]int(nil), (*upd.DaysOfWeek)...)
		}
		if upd.DayParts != nil {
			cfg.DayParts = append([]core.DayPart(nil), (*upd.DayParts)...)
		}
		if upd.MaxPostsPerDay != nil {
			cfg.MaxPostsPerDay = *upd.MaxPostsPerDay
		}
		if upd.CapScope != nil {
			cfg.CapScope = *upd.CapScope
		}
		if upd.Enabled != nil {
			cfg.Enabled = *upd.Enabled
		}
		if err := validateConfig(cfg); err != nil {
			return err
		}
		if err := tx.Config.Save(cfg); err != nil {
			return err
		}
		updated = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Schedule config updated")
	return updated, nil
}

func validateConfig(cfg *core.ScheduleConfig) error {
	if cfg.CapScope == "" {
		cfg.CapScope = core.CapScopeDay
	}
	if err := core.Validate(cfg); err != nil {
		return err
	}
	if cfg.End != nil && cfg.End.Before(cfg.Start) {
		return fmt.Errorf("%w: end time %s is before start time %s", core.ErrValidation, cfg.End, cfg.Start)
	}
	return nil
}
