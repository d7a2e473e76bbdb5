package service

import (
	"path/filepath"
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

func addDailyTemplate(t *testing.T, h *harness, body string, maxLen int) {
	t.Helper()
	require.NoError(t, h.manager.AddTemplate(core.Template{
		Key:         "daily",
		Name:        "Daily update",
		Body:        body,
		ContentType: core.ContentTypeText,
		MaxLength:   maxLen,
		Tone:        "casual",
		Enabled:     true,
	}))
}

func recurringConfig(rec core.Recurrence, start time.Time, end *time.Time, parts ...core.DayPart) core.ScheduleConfig {
	return core.ScheduleConfig{
		Recurrence:     rec,
		Start:          start,
		End:            end,
		IntervalHours:  24,
		DayParts:       parts,
		MaxPostsPerDay: 3,
		CapScope:       core.CapScopeDay,
		Enabled:        true,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestRecurringOnlyAllowedWeekdays(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
	addDailyTemplate(t, h, "Update for {date} at {time}", 280)

	// 2026-06-01 is a Monday.
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := recurringConfig(core.RecurrenceDaily, start, timePtr(start.AddDate(0, 0, 7).Add(-time.Minute)),
		core.DayPartMorning, core.DayPartEvening)
	cfg.DaysOfWeek = []int{5, 6}

	created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
	require.NoError(t, err)
	require.Len(t, created, 4)
	for _, s := range created {
		assert.Contains(t, []int{5, 6}, core.MondayIndex(s.ScheduledTime.Weekday()))
		assert.Equal(t, core.ScheduleStatusPending, s.Status)
		assert.Equal(t, core.RecurrenceDaily, s.Recurrence)
	}

	post, err := h.manager.GetPost(created[0].PostID)
	require.NoError(t, err)
	assert.Equal(t, "Update for 2026-06-06 at 08:00", post.Content.Text)
	assert.Equal(t, core.PostStatusScheduled, post.Status)
	assert.Equal(t, "daily", post.TemplateName)
}

func TestRecurringWeeklyAdvancesToAllowedWeekday(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
	addDailyTemplate(t, h, "{date}", 280)

	// Monday start, Saturdays only.
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := recurringConfig(core.RecurrenceWeekly, start, timePtr(start.AddDate(0, 0, 28).Add(-time.Minute)),
		core.DayPartMorning)
	cfg.DaysOfWeek = []int{5}

	created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
	require.NoError(t, err)
	var days []string
	for _, s := range created {
		days = append(days, s.ScheduledTime.Format("2006-01-02"))
		assert.Equal(t, core.RecurrenceWeekly, s.Recurrence)
	}
	assert.Equal(t, []string{"2026-06-06", "2026-06-13", "2026-06-20", "2026-06-27"}, days)
}

func TestRecurringCapScopes(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := timePtr(time.Date(2026, 6, 3, 23, 0, 0, 0, time.UTC))
	parts := []core.DayPart{core.DayPartMorning, core.DayPartLunch, core.DayPartEvening, core.DayPartNight}

	t.Run("per day", func(t *testing.T) {
		h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
		addDailyTemplate(t, h, "{date}", 280)
		cfg := recurringConfig(core.RecurrenceDaily, start, end, parts...)
		cfg.MaxPostsPerDay = 2

		created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
		require.NoError(t, err)
		assert.Len(t, created, 6)

		perDay := map[int]int{}
		for _, s := range created {
			perDay[s.ScheduledTime.Day()]++
		}
		assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 2}, perDay)
	})

	t.Run("per run", func(t *testing.T) {
		h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
		addDailyTemplate(t, h, "{date}", 280)
		cfg := recurringConfig(core.RecurrenceDaily, start, end, parts...)
		cfg.MaxPostsPerDay = 5
		cfg.CapScope = core.CapScopeRun

		created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
		require.NoError(t, err)
		assert.Len(t, created, 5)
	})
}

func TestRecurringRespectsStartWithinDay(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
	addDailyTemplate(t, h, "{time}", 280)

	start := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	cfg := recurringConfig(core.RecurrenceDaily, start, timePtr(time.Date(2026, 6, 2, 23, 0, 0, 0, time.UTC)),
		core.DayPartMorning, core.DayPartLunch, core.DayPartEvening)

	created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
	require.NoError(t, err)
	require.Len(t, created, 4)
	assert.Equal(t, time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC), created[0].ScheduledTime)
	assert.Equal(t, time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC), created[1].ScheduledTime)
}

func TestRecurringOnceAndMonthly(t *testing.T) {
	t.Run("once", func(t *testing.T) {
		h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
		addDailyTemplate(t, h, "{date}", 280)
		cfg := recurringConfig(core.RecurrenceOnce, time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC), nil,
			core.DayPartMorning, core.DayPartLunch, core.DayPartEvening)
		cfg.MaxPostsPerDay = 2

		created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, 1, created[1].ScheduledTime.Day())
	})

	t.Run("monthly clamps to month end", func(t *testing.T) {
		h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
		addDailyTemplate(t, h, "{date}", 280)
		h.clock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		cfg := recurringConfig(core.RecurrenceMonthly, time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC),
			timePtr(time.Date(2026, 4, 30, 23, 59, 0, 0, time.UTC)), core.DayPartNight)

		created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
		require.NoError(t, err)
		var days []string
		for _, s := range created {
			days = append(days, s.ScheduledTime.Format("2006-01-02"))
		}
		assert.Equal(t, []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30"}, days)
	})
}

func TestRecurringSafetyLimits(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	opts := DefaultOptions()
	opts.MaxGeneratedSchedules = 5
	h := newHarness(t, &stubPublisher{ok: true}, opts)
	addDailyTemplate(t, h, "{date}", 280)
	created, err := h.sched.CreateRecurringSchedule("daily",
		recurringConfig(core.RecurrenceDaily, start, nil, core.DayPartMorning, core.DayPartEvening), RecurringOptions{})
	require.NoError(t, err)
	assert.Len(t, created, 5)

	opts = DefaultOptions()
	opts.MaxGenerationDays = 3
	h = newHarness(t, &stubPublisher{ok: true}, opts)
	addDailyTemplate(t, h, "{date}", 280)
	created, err = h.sched.CreateRecurringSchedule("daily",
		recurringConfig(core.RecurrenceDaily, start, nil, core.DayPartMorning, core.DayPartEvening), RecurringOptions{})
	require.NoError(t, err)
	assert.Len(t, created, 6)

	opts = DefaultOptions()
	opts.MaxGenerationDays = 15
	h = newHarness(t, &stubPublisher{ok: true}, opts)
	addDailyTemplate(t, h, "{date}", 280)
	created, err = h.sched.CreateRecurringSchedule("daily",
		recurringConfig(core.RecurrenceWeekly, start, nil, core.DayPartMorning), RecurringOptions{})
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC), created[2].ScheduledTime)
}

func TestRecurringIsAllOrNothing(t *testing.T) {
	h := newHarness(t, &stubPublisher{ok: true}, DefaultOptions())
	addDailyTemplate(t, h, "{date} {topic}", 280)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := recurringConfig(core.RecurrenceDaily, start, timePtr(start.AddDate(0, 0, 3).Add(-time.Minute)), core.DayPartMorning)

	_, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{})
	assert.ErrorIs(t, err, core.ErrValidation)

	all, err := h.sched.ListSchedules("", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
	postsLeft, err := h.manager.ListPosts(repository.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, postsLeft)

	var seen int
	created, err := h.sched.CreateRecurringSchedule("daily", cfg, RecurringOptions{
		Vars:     map[string]string{"topic": "news", "date": "ignored"},
		OnCreate: func(core.Schedule) { seen++ },
	})
	require.NoError(t, err)
	assert.Len(t, created, 3)
	assert.Equal(t, 3, seen)
	post, _ := h.manager.GetPost(created[0].PostID)
	assert.Equal(t, "2026-06-01 news", post.Content.Text)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.Generated))

	_, err = h.sched.CreateRecurringSchedule("missing", cfg, RecurringOptions{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	bad := cfg
	bad.MaxPostsPerDay = 0
	_, err = h.sched.CreateRecurringSchedule("daily", bad, RecurringOptions{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestNewSchedulerKeepsStoredConfig(t *testing.T) {
	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "cfg.db"))
	require.NoError(t, err)
	defer database.Close()
	log, _ := test.NewNullLogger()
	manager := posts.NewManager(repository.NewStore(database.DB), &stubPublisher{ok: true}, posts.WithLogger(log))

	first, err := NewScheduler(manager, Options{}, WithLogger(log), WithMetrics(NewMetrics(prometheus.NewRegistry())))
	require.NoError(t, err)
	five := 5
	_, err = first.UpdateConfig(ConfigUpdate{MaxPostsPerDay: &five})
	require.NoError(t, err)

	second, err := NewScheduler(manager, Options{}, WithLogger(log))
	require.NoError(t, err)
	cfg, err := second.Config()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxPostsPerDay)
	assert.Equal(t, time.Minute, second.opts.PollInterval)
}
