package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agnosto/autoposter/config"
	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.CreateDefaultConfig()
	cfg.Storage.DatabasePath = filepath.Join(dir, "autoposter.db")
	cfg.Logging.LogDir = filepath.Join(dir, "logs")
	return cfg
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	app, err := NewApp(testConfig(t), filepath.Join(t.TempDir(), "config.toml"), out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, out
}

func execute(t *testing.T, app *App, args ...string) {
	t.Helper()
	require.NoError(t, Execute(context.Background(), app, args))
}

func TestPostScheduleAndRunOnce(t *testing.T) {
	app, out := newTestApp(t)

	execute(t, app, "post", "create", "-text", "hello from the cli", "-hashtags", "go,cli")
	list, err := app.Manager.ListPosts(repository.PostFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	post := list[0]
	assert.Equal(t, []string{"go", "cli"}, post.Content.Hashtags)

	execute(t, app, "schedule", "add", post.ID, "-at", "2020-01-01 10:00")
	execute(t, app, "schedule", "pending")
	assert.Contains(t, out.String(), post.ID)

	out.Reset()
	execute(t, app, "run", "-once")
	assert.Contains(t, out.String(), "1 executed")

	got, err := app.Manager.GetPost(post.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PostStatusPosted, got.Status)

	out.Reset()
	execute(t, app, "stats", "-json")
	var st core.Statistics
	require.NoError(t, json.Unmarshal(out.Bytes(), &st))
	assert.Equal(t, 1, st.Executed)
	assert.InDelta(t, 100.0, st.SuccessRate, 0.001)
}

func TestPostUpdateOnlyTouchesGivenFlags(t *testing.T) {
	app, _ := newTestApp(t)
	execute(t, app, "post", "create", "-text", "first", "-links", "https://example.com")
	list, _ := app.Manager.ListPosts(repository.PostFilter{})
	require.Len(t, list, 1)
	id := list[0].ID

	execute(t, app, "post", "update", id, "-text", "second")
	got, err := app.Manager.GetPost(id)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content.Text)
	assert.Equal(t, []string{"https://example.com"}, got.Content.Links)

	execute(t, app, "post", "delete", id)
	_, err = app.Manager.GetPost(id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTemplateCommands(t *testing.T) {
	app, out := newTestApp(t)

	execute(t, app, "template", "add", "greet", "-body", "Hi {name}!", "-max-length", "50")
	out.Reset()
	execute(t, app, "post", "from-template", "greet", "-var", "name=Ann")
	assert.Contains(t, out.String(), "Hi Ann!")

	out.Reset()
	execute(t, app, "template", "list")
	assert.Contains(t, out.String(), "greet")
	assert.Contains(t, out.String(), "trend_commentary")

	execute(t, app, "template", "update", "greet", "-enabled=false")
	enabled, err := app.Manager.EnabledTemplates()
	require.NoError(t, err)
	for _, tmpl := range enabled {
		assert.NotEqual(t, "greet", tmpl.Key)
	}

	err = Execute(context.Background(), app, []string{"post", "from-template", "greet"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRecurringCommand(t *testing.T) {
	app, out := newTestApp(t)
	execute(t, app, "template", "add", "daily", "-body", "Plan for {date}")

	execute(t, app, "schedule", "recurring", "daily", "-quiet",
		"-type", "daily", "-start", "2030-01-01 00:00", "-end", "2030-01-03 23:00", "-parts", "morning,evening", "-max", "1")
	assert.Contains(t, out.String(), "Created 3 schedules")

	pending, err := app.Scheduler.ListPending()
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestConfigScheduleCommand(t *testing.T) {
	app, _ := newTestApp(t)

	execute(t, app, "config", "schedule", "-max", "4", "-scope", "run", "-days", "sat,sun")
	cfg, err := app.Scheduler.Config()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxPostsPerDay)
	assert.Equal(t, core.CapScopeRun, cfg.CapScope)
	assert.Equal(t, []int{5, 6}, cfg.DaysOfWeek)

	err = Execute(context.Background(), app, []string{"config", "schedule", "-parts", "midnight"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestUnknownCommand(t *testing.T) {
	app, _ := newTestApp(t)
	assert.Error(t, Execute(context.Background(), app, []string{"frobnicate"}))
	assert.Error(t, Execute(context.Background(), app, []string{"post", "show"}))
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publisher.Mode = config.PublisherModeX
	cfg.Publisher.XBearerToken = "supersecrettoken1234"
	cfg.Notifications.DiscordWebhook = "https://discord.com/api/webhooks/123/abcdef"
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveConfig(cfg, path))

	var out bytes.Buffer
	handled, err := RunStandalone(context.Background(), path, []string{"config", "show"}, &out)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.NotContains(t, out.String(), "supersecret")
	assert.NotContains(t, out.String(), "abcdef")
	assert.Contains(t, out.String(), "mode = \"x\"")

	handled, err = RunStandalone(context.Background(), path, []string{"config", "set", "scheduler.poll_interval_seconds", "15"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, handled)
	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15, loaded.Scheduler.PollIntervalSeconds)

	handled, _ = RunStandalone(context.Background(), path, []string{"config", "schedule"}, io.Discard)
	assert.False(t, handled)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	handled, err := RunStandalone(context.Background(), "", []string{"version"}, &out)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, out.String(), Version)
}

func TestKeyValues(t *testing.T) {
	kv := keyValues{}
	require.NoError(t, kv.Set("topic=go = fun"))
	assert.Equal(t, "go = fun", kv["topic"])
	assert.Error(t, kv.Set("novalue"))
	assert.Error(t, kv.Set("=x"))
}

func TestMetricsServer(t *testing.T) {
	app, _ := newTestApp(t)
	_, err := app.Scheduler.RunOnce(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(newMetricsServer(app, "").Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "autoposter_scans_total 1")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDiagnosisSuite(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	suite := NewDiagnosisSuite(DiagnosisFlags{Level: 2, OutputFile: filepath.Join(t.TempDir(), "report.txt")},
		cfg, "/home/someone/.config/autoposter/config.toml", &out)
	suite.Run(context.Background())

	report := suite.Report()
	assert.Contains(t, report, "PASS: Integrity check ok.")
	assert.Contains(t, report, "Publisher (dry_run) is reachable")
	assert.Contains(t, report, "3 templates stored")
	assert.Contains(t, report, "[REDACTED_USER_PATH]")
	assert.False(t, strings.Contains(report, "/home/someone"))

	missing := NewDiagnosisSuite(DiagnosisFlags{OutputFile: filepath.Join(t.TempDir(), "r.txt")}, nil, "config.toml", io.Discard)
	missing.Run(context.Background())
	assert.Contains(t, missing.Report(), "FAIL: Configuration file could not be loaded")
}
