package repository_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*repository.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autoposter.db")
	database, err := db.NewDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return repository.NewStore(database.DB), path
}

func reopen(t *testing.T, path string) *repository.Store {
	t.Helper()
	database, err := db.NewDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return repository.NewStore(database.DB)
}

func assertSameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func TestPostRoundTrip(t *testing.T) {
	store, path := openStore(t)
	created := time.Date(2026, 2, 1, 10, 0, 0, 123000000, time.UTC)
	when := created.Add(2 * time.Hour)

	post := &core.Post{
		ID: "p-1",
		Content: core.PostContent{
			Text:     "Hello world",
			Hashtags: []string{"#go"},
			Links:    []string{"https://example.com"},
		},
		ScheduledTime: &when,
		Status:        core.PostStatusScheduled,
		ContentType:   core.ContentTypeText,
		TemplateName:  "trend_commentary",
		CreatedAt:     created,
		UpdatedAt:     created,
		Engagement:    map[string]any{"likes": float64(3)},
	}
	require.NoError(t, store.Posts.Create(post))
	assert.Equal(t, 1, post.Version)

	got, err := reopen(t, path).Posts.Get("p-1")
	require.NoError(t, err)

	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, post.Content, got.Content)
	assert.Equal(t, post.Status, got.Status)
	assert.Equal(t, post.ContentType, got.ContentType)
	assert.Equal(t, post.TemplateName, got.TemplateName)
	assert.Equal(t, post.Engagement, got.Engagement)
	assert.Nil(t, got.PostedAt)
	require.NotNil(t, got.ScheduledTime)
	assertSameTime(t, when, *got.ScheduledTime)
	assertSameTime(t, created, got.CreatedAt)
}

func TestPostUpdateIsVersionChecked(t *testing.T) {
	store, _ := openStore(t)
	now := time.Now()
	post := &core.Post{ID: "p-1", Content: core.PostContent{Text: "a"}, Status: core.PostStatusDraft,
		ContentType: core.ContentTypeText, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Posts.Create(post))

	stale := *post
	post.Content.Text = "b"
	require.NoError(t, store.Posts.Update(post))
	assert.Equal(t, 2, post.Version)

	stale.Content.Text = "c"
	err := store.Posts.Update(&stale)
	assert.ErrorIs(t, err, core.ErrConflict)

	missing := &core.Post{ID: "nope", Version: 1, Status: core.PostStatusDraft, ContentType: core.ContentTypeText}
	assert.ErrorIs(t, store.Posts.Update(missing), core.ErrNotFound)

	got, err := store.Posts.Get("p-1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Content.Text)
}

func TestPostListFiltersAndOrders(t *testing.T) {
	store, _ := openStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []core.PostStatus{core.PostStatusDraft, core.PostStatusPosted, core.PostStatusDraft} {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Posts.Create(&core.Post{
			ID: string(rune('a' + i)), Content: core.PostContent{Text: "x"}, Status: st,
			ContentType: core.ContentTypeText, CreatedAt: ts, UpdatedAt: ts,
		}))
	}

	all, err := store.Posts.List(repository.PostFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	drafts, err := store.Posts.List(repository.PostFilter{Status: core.PostStatusDraft, Limit: 1})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "c", drafts[0].ID)

	ok, err := store.Posts.Delete("b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Posts.Delete("b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScheduleDueAndRoundTrip(t *testing.T) {
	store, path := openStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id string, at time.Time, st core.ScheduleStatus) {
		require.NoError(t, store.Schedules.Create(&core.Schedule{
			ID: id, PostID: "p-" + id, ScheduledTime: at, Recurrence: core.RecurrenceOnce,
			Status: st, CreatedAt: now.Add(-time.Hour),
		}))
	}
	mk("late", now.Add(-time.Minute), core.ScheduleStatusPending)
	mk("exact", now, core.ScheduleStatusPending)
	mk("future", now.Add(time.Second), core.ScheduleStatusPending)
	mk("done", now.Add(-time.Hour), core.ScheduleStatusExecuted)

	due, err := store.Schedules.Due(now.In(time.FixedZone("X", 5*3600)))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "late", due[0].ID)
	assert.Equal(t, "exact", due[1].ID)

	listed, err := reopen(t, path).Schedules.List(repository.ScheduleFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 4)
	assert.Equal(t, "future", listed[0].ID)
	assert.Equal(t, core.RecurrenceOnce, listed[0].Recurrence)

	pending, err := store.Schedules.HasPending("p-future")
	require.NoError(t, err)
	assert.True(t, pending)
	pending, err = store.Schedules.HasPending("p-done")
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestAtomicRollsBack(t *testing.T) {
	store, _ := openStore(t)
	now := time.Now()
	boom := errors.New("boom")

	err := store.Atomic(func(tx *repository.Store) error {
		require.NoError(t, tx.Posts.Create(&core.Post{ID: "p", Content: core.PostContent{Text: "x"},
			Status: core.PostStatusDraft, ContentType: core.ContentTypeText, CreatedAt: now, UpdatedAt: now}))
		return boom
	})
	assert.ErrorIs(t, err, core.ErrPersistence)

	_, err = store.Posts.Get("p")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTemplatesAndConfig(t *testing.T) {
	store, _ := openStore(t)

	tmpl := &core.Template{Key: "k", Name: "K", Body: "{date}", ContentType: core.ContentTypeText, Enabled: false}
	require.NoError(t, store.Templates.Create(tmpl))
	assert.Error(t, store.Templates.Create(tmpl))

	enabled, err := store.Templates.List(true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	tmpl.Enabled = true
	tmpl.Hashtags = []string{"#a"}
	require.NoError(t, store.Templates.Save(tmpl))
	got, err := store.Templates.Get("k")
	require.NoError(t, err)
	assert.Equal(t, *tmpl, *got)

	assert.ErrorIs(t, store.Templates.Save(&core.Template{Key: "missing", Name: "m", Body: "b", ContentType: core.ContentTypeText}), core.ErrNotFound)

	_, err = store.Config.Get()
	assert.ErrorIs(t, err, core.ErrNotFound)

	cfg := core.DefaultScheduleConfig(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Config.Save(&cfg))
	cfg.MaxPostsPerDay = 7
	require.NoError(t, store.Config.Save(&cfg))

	loaded, err := store.Config.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.MaxPostsPerDay)
	assert.Equal(t, cfg.DayParts, loaded.DayParts)
	assert.Equal(t, cfg.DaysOfWeek, loaded.DaysOfWeek)
	assertSameTime(t, cfg.Start, loaded.Start)
}
