package service

import (
	"context"
	"errors"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/posts"
	"github.com/sirupsen/logrus"
)

const (
	OutcomeExecuted = "executed"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// ScanResult counts what one pass over the due schedules did.
type ScanResult struct {
	Due      int
	Executed int
	Failed   int
	Skipped  int
}

// Run scans immediately and then every poll interval until ctx is done or
// Shutdown is called. A failing or panicking scan is logged and the loop
// carries on.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithField("interval", s.opts.PollInterval).Info("Starting schedule executor")

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.safeScan(ctx)
	for {
		select {
		case <-ticker.C:
			s.safeScan(ctx)
		case <-ctx.Done():
			s.log.Info("Schedule executor stopped")
			return nil
		case <-s.stopChan:
			s.log.Info("Schedule executor stopped")
			return nil
		}
	}
}

// Shutdown stops Run. It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Scheduler) safeScan(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Recovered from panic in schedule scan")
		}
	}()
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.log.WithError(err).Error("Schedule scan failed")
		return
	}
	if res.Due > 0 {
		s.log.WithFields(logrus.Fields{
			"due":      res.Due,
			"executed": res.Executed,
			"failed":   res.Failed,
			"skipped":  res.Skipped,
		}).Info("Schedule scan finished")
	}
}

// RunOnce processes every schedule that is due now. Failures of single
// schedules are recorded on them and never abort the pass; only a failure to
// read the due set is returned.
func (s *Scheduler) RunOnce(ctx context.Context) (ScanResult, error) {
	var res ScanResult
	due, err := s.due.Due(s.now())
	s.metrics.scanned(err)
	if err != nil {
		return res, err
	}
	res.Due = len(due)

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		switch s.execute(ctx, due[i]) {
		case OutcomeExecuted:
			res.Executed++
		case OutcomeFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}

	if pending, err := s.store.Schedules.List(repository.ScheduleFilter{Status: core.ScheduleStatusPending}); err == nil {
		s.metrics.pending(len(pending))
	}
	return res, nil
}

// claim marks the schedule in flight if it is still pending in the store.
func (s *Scheduler) claim(id string) (*core.Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return nil, false
	}
	sched, err := s.store.Schedules.Get(id)
	if err != nil {
		s.log.WithError(err).WithField("schedule_id", id).Warn("Could not re-read due schedule")
		return nil, false
	}
	if sched.Status != core.ScheduleStatusPending {
		return nil, false
	}
	s.inFlight[id] = struct{}{}
	return sched, true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *Scheduler) execute(ctx context.Context, due core.Schedule) string {
	sched, ok := s.claim(due.ID)
	if !ok {
		s.metrics.outcome(OutcomeSkipped, 0)
		return OutcomeSkipped
	}
	defer s.release(sched.ID)

	log := s.log.WithFields(logrus.Fields{"schedule_id": sched.ID, "post_id": sched.PostID})
	started := time.Now()

	var (
		hookRan bool
		final   *core.Schedule
		post    *core.Post
	)
	record := func(tx *repository.Store, o posts.Outcome) error {
		hookRan = true
		fresh, err := tx.Schedules.Get(sched.ID)
		if err != nil {
			return err
		}
		if fresh.Status != core.ScheduleStatusPending {
			// Another process moved the schedule while the publish was running.
			// The publish already happened, so its outcome overwrites that state.
			log.WithField("status", fresh.Status).Warn("Schedule changed during publish, recording publish outcome")
			fresh.Status = core.ScheduleStatusPending
			fresh.ExecutedAt = nil
			fresh.ErrorMessage = ""
		}
		if o.Published {
			at := o.At
			fresh.ExecutedAt = &at
			_ = fresh.Transition(core.ScheduleStatusExecuted)
		} else {
			_ = fresh.Transition(core.ScheduleStatusFailed)
			fresh.ErrorMessage = core.GenericFailureMessage
			if o.Err != nil {
				fresh.ErrorMessage = o.Err.Error()
			}
		}
		if err := tx.Schedules.Update(fresh); err != nil {
			return err
		}
		final, post = fresh, o.Post
		return nil
	}

	_, err := s.manager.Publish(ctx, sched.PostID, record)
	committed := hookRan && (err == nil || !isStoreFailure(err))
	if !committed {
		// The outcome was not stored with the post: the post is missing or
		// not publishable, or the outcome transaction failed.
		final, err = s.markFailed(sched.ID, err)
		if err != nil {
			log.WithError(err).Error("Failed to record schedule failure")
			s.metrics.outcome(OutcomeSkipped, time.Since(started))
			return OutcomeSkipped
		}
		post = nil
	}

	outcome := OutcomeFailed
	if final.Status == core.ScheduleStatusExecuted {
		outcome = OutcomeExecuted
	}
	s.metrics.outcome(outcome, time.Since(started))

	entry := log.WithField("outcome", outcome)
	if outcome == OutcomeExecuted {
		entry.Info("Schedule executed")
	} else {
		entry.WithField("error", final.ErrorMessage).Warn("Schedule failed")
	}
	s.notify(post, final)
	return outcome
}

func isStoreFailure(err error) bool {
	return errors.Is(err, core.ErrPersistence) || errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrNotFound)
}

// markFailed stores a failed outcome on a schedule whose post outcome could
// not be written.
func (s *Scheduler) markFailed(id string, cause error) (*core.Schedule, error) {
	msg := core.GenericFailureMessage
	if cause != nil {
		msg = cause.Error()
	}
	var sched *core.Schedule
	err := s.store.Atomic(func(tx *repository.Store) error {
		var err error
		sched, err = tx.Schedules.Get(id)
		if err != nil {
			return err
		}
		if err := sched.Transition(core.ScheduleStatusFailed); err != nil {
			return err
		}
		sched.ErrorMessage = msg
		return tx.Schedules.Update(sched)
	})
	return sched, err
}

func (s *Scheduler) notify(post *core.Post, sched *core.Schedule) {
	if s.notifier == nil {
		return
	}
	if post == nil {
		if p, err := s.store.Posts.Get(sched.PostID); err == nil {
			post = p
		}
	}
	if sched.Status == core.ScheduleStatusExecuted {
		s.notifier.NotifyPublished(post, sched)
		return
	}
	s.notifier.NotifyFailed(post, sched, sched.ErrorMessage)
}
