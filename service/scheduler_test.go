package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/posts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type stubPublisher struct {
	mu      sync.Mutex
	ok      bool
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (p *stubPublisher) Publish(ctx context.Context, text string) (bool, error) {
	p.mu.Lock()
	p.calls++
	ok, err, started, release := p.ok, p.err, p.started, p.release
	p.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return ok, err
}

type recordingNotifier struct {
	mu        sync.Mutex
	published []string
	failed    []string
}

func (n *recordingNotifier) NotifyPublished(post *core.Post, s *core.Schedule) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, s.ID)
}

func (n *recordingNotifier) NotifyFailed(post *core.Post, s *core.Schedule, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, reason)
}

type harness struct {
	sched    *Scheduler
	manager  *posts.Manager
	clock    *fakeClock
	metrics  *Metrics
	notifier *recordingNotifier
}

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, pub posts.Publisher, opts Options) *harness {
	t.Helper()
	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	log, _ := test.NewNullLogger()
	clock := &fakeClock{t: t0}
	manager := posts.NewManager(repository.NewStore(database.DB), pub,
		posts.WithLogger(log), posts.WithClock(clock.Now), posts.WithPublishTimeout(time.Second))

	metrics := NewMetrics(prometheus.NewRegistry())
	notifier := &recordingNotifier{}
	sched, err := NewScheduler(manager, opts,
		WithLogger(log), WithClock(clock.Now), WithMetrics(metrics), WithNotifier(notifier))
	require.NoError(t, err)

	return &harness{sched: sched, manager: manager, clock: clock, metrics: metrics, notifier: notifier}
}

func (h *harness) draft(t *testing.T, text string) *core.Post {
	t.Helper()
	post, err := h.manager.CreatePost(core.PostContent{Text: text}, core.ContentTypeText, "", nil)
	require.NoError(t, err)
	return post
}

func TestScheduleExecutesWhenDue(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
	post := h.draft(t, "Hello world")

	s, err := h.sched.SchedulePost(post.ID, t0.Add(time.Hour), core.RecurrenceOnce)
	require.NoError(t, err)
	assert.Equal(t, core.ScheduleStatusPending, s.Status)

	res, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Due)
	got, _ := h.sched.GetSchedule(s.ID)
	assert.Equal(t, core.ScheduleStatusPending, got.Status)

	h.clock.Set(t0.Add(2 * time.Hour))
	res, err = h.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Due: 1, Executed: 1}, res)

	got, _ = h.sched.GetSchedule(s.ID)
	assert.Equal(t, core.ScheduleStatusExecuted, got.Status)
	require.NotNil(t, got.ExecutedAt)
	assert.True(t, got.ExecutedAt.Equal(t0.Add(2*time.Hour)))

	p, _ := h.manager.GetPost(post.ID)
	assert.Equal(t, core.PostStatusPosted, p.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Outcomes.WithLabelValues(OutcomeExecuted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Pending))
	assert.Equal(t, []string{s.ID}, h.notifier.published)
}

func TestScheduleFailsWhenPublisherDeclines(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: false}, DefaultOptions())
	post := h.draft(t, "nope")
	s, err := h.sched.SchedulePost(post.ID, t0, core.RecurrenceOnce)
	require.NoError(t, err)

	res, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	got, _ := h.sched.GetSchedule(s.ID)
	assert.Equal(t, core.ScheduleStatusFailed, got.Status)
	assert.Equal(t, core.GenericFailureMessage, got.ErrorMessage)
	assert.Nil(t, got.ExecutedAt)

	p, _ := h.manager.GetPost(post.ID)
	assert.Equal(t, core.PostStatusFailed, p.Status)
	assert.Equal(t, []string{core.GenericFailureMessage}, h.notifier.failed)
}

func TestScheduleRecordsPublisherError(t *testing.T) {
	h := newHarness(t, &stubPublisher{err: errors.New("503 from upstream")}, DefaultOptions())
	post := h.draft(t, "x")
	s, _ := h.sched.SchedulePost(post.ID, t0, core.RecurrenceOnce)

	_, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)

	got, _ := h.sched.GetSchedule(s.ID)
	assert.Equal(t, core.ScheduleStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "503 from upstream")
	p, _ := h.manager.GetPost(post.ID)
	assert.Equal(t, core.PostStatusFailed, p.Status)
	assert.Contains(t, p.ErrorMessage, "503 from upstream")
}

func TestCancelOnlyFromPending(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
	done := h.draft(t, "done")
	later := h.draft(t, "later")

	executed, _ := h.sched.SchedulePost(done.ID, t0, core.RecurrenceOnce)
	pending, _ := h.sched.SchedulePost(later.ID, t0.Add(24*time.Hour), core.RecurrenceOnce)
	_, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)

	before, _ := h.sched.GetSchedule(executed.ID)
	ok, err := h.sched.CancelSchedule(executed.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	after, _ := h.sched.GetSchedule(executed.ID)
	assert.Equal(t, before, after)

	ok, err = h.sched.CancelSchedule(pending.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.sched.CancelSchedule(pending.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.sched.CancelSchedule("unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	h.clock.Set(t0.Add(48 * time.Hour))
	res, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Due, "cancelled schedules are never executed")
}

func TestCancelDuringPublishIsRefused(t *testing.T) {
	pub := &stubPublisher{ok: true, started: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, pub, DefaultOptions())
	post := h.draft(t, "slow")
	s, _ := h.sched.SchedulePost(post.ID, t0, core.RecurrenceOnce)

	done := make(chan ScanResult)
	go func() {
		res, _ := h.sched.RunOnce(context.Background())
		done <- res
	}()

	<-pub.started
	ok, err := h.sched.CancelSchedule(s.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	close(pub.release)

	res := <-done
	assert.Equal(t, 1, res.Executed)
	got, _ := h.sched.GetSchedule(s.ID)
	assert.Equal(t, core.ScheduleStatusExecuted, got.Status)
}

func TestSchedulePostValidatesEagerly(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())

	_, err := h.sched.SchedulePost("missing", t0, core.RecurrenceOnce)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.sched.SchedulePost("x", t0, "hourly")
	assert.ErrorIs(t, err, core.ErrValidation)

	post := h.draft(t, "x")
	_, err = h.sched.SchedulePost(post.ID, t0.Add(time.Hour), core.RecurrenceOnce)
	require.NoError(t, err)
	p, _ := h.manager.GetPost(post.ID)
	assert.Equal(t, core.PostStatusScheduled, p.Status)

	_, err = h.sched.SchedulePost(post.ID, t0.Add(2*time.Hour), core.RecurrenceOnce)
	assert.ErrorIs(t, err, core.ErrValidation)

	posted := h.draft(t, "posted")
	_, err = h.manager.Publish(context.Background(), posted.ID)
	require.NoError(t, err)
	_, err = h.sched.SchedulePost(posted.ID, t0, core.RecurrenceOnce)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestLazyModeFailsMissingPostAtExecution(t *testing.T) {
	opts := DefaultOptions()
	opts.ValidatePostOnSchedule = false
	h := newHarness(t, &stubPublisher{ok: true}, opts)

	s, err := h.sched.SchedulePost("ghost", t0, core.RecurrenceOnce)
	require.NoError(t, err)

	res, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	got, _ := h.sched.GetSchedule(s.ID)
	assert.Equal(t, core.ScheduleStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "not found")
}

func TestStatisticsInvariant(t *testing.T) {
	pub := &stubPublisher{ok: true}
	h := newHarness(t, pub, DefaultOptions())

	for i := 0; i < 3; i++ {
		p := h.draft(t, "due")
		_, err := h.sched.SchedulePost(p.ID, t0.Add(-time.Duration(i)*time.Minute), core.RecurrenceOnce)
		require.NoError(t, err)
	}
	_, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)

	cancelled := h.draft(t, "cancel")
	c, _ := h.sched.SchedulePost(cancelled.ID, t0.Add(time.Hour), core.RecurrenceOnce)
	_, err = h.sched.CancelSchedule(c.ID)
	require.NoError(t, err)
	future := h.draft(t, "future")
	_, err = h.sched.SchedulePost(future.ID, t0.Add(72*time.Hour), core.RecurrenceOnce)
	require.NoError(t, err)

	st, err := h.sched.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, st.Total, st.Pending+st.Executed+st.Failed+st.Cancelled)
	assert.Equal(t, 3, st.Executed)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.Cancelled)
	assert.Equal(t, 4, st.Today)
	assert.InDelta(t, 60.0, st.SuccessRate, 0.001)

	listed, err := h.sched.ListSchedules(core.ScheduleStatusExecuted, 2)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	pending, err := h.sched.ListPending()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSuggestOptimalTimesUsesConfig(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())

	times, err := h.sched.SuggestOptimalTimes(t0, 5)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)}, times)

	parts := []core.DayPart{core.DayPartNight, core.DayPartLunch}
	_, err = h.sched.UpdateConfig(ConfigUpdate{DayParts: &parts})
	require.NoError(t, err)

	times, err = h.sched.SuggestOptimalTimes(t0, 1)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC)}, times)
}

func TestUpdateConfigValidates(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())

	zero := 0
	_, err := h.sched.UpdateConfig(ConfigUpdate{MaxPostsPerDay: &zero})
	assert.ErrorIs(t, err, core.ErrValidation)

	bad := []int{9}
	_, err = h.sched.UpdateConfig(ConfigUpdate{DaysOfWeek: &bad})
	assert.ErrorIs(t, err, core.ErrValidation)

	early := t0.Add(-48 * time.Hour)
	_, err = h.sched.UpdateConfig(ConfigUpdate{End: &early})
	assert.ErrorIs(t, err, core.ErrValidation)

	five := 5
	scope := core.CapScopeRun
	cfg, err := h.sched.UpdateConfig(ConfigUpdate{MaxPostsPerDay: &five, CapScope: &scope})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxPostsPerDay)

	stored, err := h.sched.Config()
	require.NoError(t, err)
	assert.Equal(t, core.CapScopeRun, stored.CapScope)
	assert.Equal(t, 5, stored.MaxPostsPerDay)
}

func TestRunStopsOnShutdownAndContext(t *testing.T) {
	opts := DefaultOptions()
	opts.PollInterval = 10 * time.Millisecond
	h := newHarness(t, &stubPublisher{ok: true}, opts)
	post := h.draft(t, "loop")
	s, _ := h.sched.SchedulePost(post.ID, t0, core.RecurrenceOnce)

	errc := make(chan error, 1)
	go func() { errc <- h.sched.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		got, err := h.sched.GetSchedule(s.ID)
		return err == nil && got.Status == core.ScheduleStatusExecuted
	}, 2*time.Second, 10*time.Millisecond)

	h.sched.Shutdown()
	h.sched.Shutdown()
	require.NoError(t, <-errc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.sched.Run(ctx))
}

type funcPublisher func(ctx context.Context, text string) (bool, error)

func (f funcPublisher) Publish(ctx context.Context, text string) (bool, error) { return f(ctx, text) }

func TestPublishOutcomeWinsOverCancelFromAnotherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	log, _ := test.NewNullLogger()
	clock := &fakeClock{t: t0}
	open := func(pub posts.Publisher) (*Scheduler, *posts.Manager) {
		database, err := db.NewDatabase(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = database.Close() })
		manager := posts.NewManager(repository.NewStore(database.DB), pub,
			posts.WithLogger(log), posts.WithClock(clock.Now), posts.WithPublishTimeout(5*time.Second))
		sched, err := NewScheduler(manager, DefaultOptions(), WithLogger(log), WithClock(clock.Now))
		require.NoError(t, err)
		return sched, manager
	}

	var (
		other     *Scheduler
		scheduled *core.Schedule
		cancelled bool
		cancelErr error
	)
	loop, manager := open(funcPublisher(func(ctx context.Context, text string) (bool, error) {
		cancelled, cancelErr = other.CancelSchedule(scheduled.ID)
		return true, nil
	}))
	other, _ = open(&stubPublisher{ok: true})

	post, err := manager.CreatePost(core.PostContent{Text: "race"}, core.ContentTypeText, "", nil)
	require.NoError(t, err)
	scheduled, err = loop.SchedulePost(post.ID, t0.Add(-time.Minute), core.RecurrenceOnce)
	require.NoError(t, err)

	res, err := loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, cancelErr)
	assert.True(t, cancelled)
	assert.Equal(t, ScanResult{Due: 1, Executed: 1}, res)

	gotPost, err := manager.GetPost(post.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PostStatusPosted, gotPost.Status)
	assert.NotNil(t, gotPost.PostedAt)

	gotSched, err := other.GetSchedule(scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ScheduleStatusExecuted, gotSched.Status)
	assert.NotNil(t, gotSched.ExecutedAt)
	assert.Empty(t, gotSched.ErrorMessage)
}
