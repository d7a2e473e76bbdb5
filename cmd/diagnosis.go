package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/agnosto/autoposter/config"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/logger"
	"github.com/agnosto/autoposter/publisher"
)

type DiagnosisFlags struct {
	Level      int
	OutputFile string
}

func ParseDiagnosisFlags(args []string) (DiagnosisFlags, error) {
	var flags DiagnosisFlags
	fs := newFlagSet("diagnose")
	fs.IntVar(&flags.Level, "level", 1, "Verbosity level (2 prints the redacted config)")
	fs.StringVar(&flags.OutputFile, "output", "", "Report file (default: diagnosis-report-<time>.txt)")
	err := fs.Parse(args)
	return flags, err
}

type DiagnosisSuite struct {
	flags      DiagnosisFlags
	cfg        *config.Config
	configPath string
	report     *strings.Builder
	out        io.Writer
	app        *App
}

func NewDiagnosisSuite(flags DiagnosisFlags, cfg *config.Config, configPath string, out io.Writer) *DiagnosisSuite {
	return &DiagnosisSuite{
		flags:      flags,
		cfg:        cfg,
		configPath: configPath,
		report:     &strings.Builder{},
		out:        out,
	}
}

func (ds *DiagnosisSuite) Run(ctx context.Context) {
	ds.log("Starting diagnosis suite...")
	ds.log(fmt.Sprintf("Version: %s", Version))
	ds.log(fmt.Sprintf("Verbosity Level: %d", ds.flags.Level))
	ds.log("----------------------------------")

	ds.testConfig()
	ds.testDatabase()
	if ds.app != nil {
		defer ds.app.Close()
		ds.testPublisher(ctx)
		ds.testScheduler()
	}

	ds.log("----------------------------------")
	ds.log("Diagnosis suite finished.")

	ds.saveReport()
}

// Report returns the text collected so far.
func (ds *DiagnosisSuite) Report() string {
	return ds.report.String()
}

func (ds *DiagnosisSuite) log(message string) {
	fmt.Fprintln(ds.out, message)
	ds.report.WriteString(message + "\n")
}

var userPathPattern = regexp.MustCompile(`(?i)(C:\\Users\\[^\\]+|/home/[^/]+|/Users/[^/]+)`)

func (ds *DiagnosisSuite) sanitizePath(path string) string {
	return userPathPattern.ReplaceAllString(path, "[REDACTED_USER_PATH]")
}

func (ds *DiagnosisSuite) testConfig() {
	ds.log("\n[1] Testing Configuration")
	ds.log(fmt.Sprintf(" - Config path: %s", ds.sanitizePath(ds.configPath)))
	if ds.cfg == nil {
		ds.log(" - FAIL: Configuration file could not be loaded. Fix it or delete it to regenerate the defaults.")
		return
	}
	ds.log(" - PASS: Config loaded successfully.")
	ds.log(fmt.Sprintf(" - INFO: Publisher mode: %s", ds.cfg.Publisher.Mode))
	ds.log(fmt.Sprintf(" - INFO: Log file: %s", ds.sanitizePath(logger.LogPath(ds.cfg))))

	if ds.flags.Level > 1 {
		redacted := redactConfig(*ds.cfg)
		redacted.Storage.DatabasePath = ds.sanitizePath(redacted.Storage.DatabasePath)
		redacted.Logging.LogDir = ds.sanitizePath(redacted.Logging.LogDir)
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(redacted); err == nil {
			ds.log(" - Loaded config (redacted):\n" + sb.String())
		}
	}
}

func (ds *DiagnosisSuite) testDatabase() {
	ds.log("\n[2] Testing Database")
	if ds.cfg == nil {
		ds.log(" - SKIP: Cannot open the database without a valid config.")
		return
	}
	ds.log(fmt.Sprintf(" - Database path: %s", ds.sanitizePath(ds.cfg.Storage.DatabasePath)))

	app, err := NewApp(ds.cfg, ds.configPath, io.Discard)
	if err != nil {
		ds.log(fmt.Sprintf(" - FAIL: Could not open the database: %v", err))
		return
	}
	ds.app = app

	result, err := app.DB.IntegrityCheck()
	if err != nil {
		ds.log(fmt.Sprintf(" - FAIL: Integrity check failed: %v", err))
	} else if result != "ok" {
		ds.log(fmt.Sprintf(" - FAIL: Integrity check reported: %s", result))
	} else {
		ds.log(" - PASS: Integrity check ok.")
	}

	postList, err := app.Store.Posts.List(repository.PostFilter{})
	if err != nil {
		ds.log(fmt.Sprintf(" - FAIL: Could not read posts: %v", err))
		return
	}
	templates, err := app.Store.Templates.Count()
	if err != nil {
		ds.log(fmt.Sprintf(" - FAIL: Could not read templates: %v", err))
		return
	}
	ds.log(fmt.Sprintf(" - INFO: %d posts, %d templates stored.", len(postList), templates))
}

func (ds *DiagnosisSuite) testPublisher(ctx context.Context) {
	ds.log("\n[3] Testing Publisher")
	checker, ok := ds.app.Publisher.(publisher.Checker)
	if !ok {
		ds.log(" - SKIP: Publisher has no reachability check.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := checker.Check(ctx); err != nil {
		ds.log(fmt.Sprintf(" - FAIL: Publisher is not reachable: %v", err))
		return
	}
	ds.log(fmt.Sprintf(" - PASS: Publisher (%s) is reachable.", ds.cfg.Publisher.Mode))
}

func (ds *DiagnosisSuite) testScheduler() {
	ds.log("\n[4] Testing Scheduler")
	cfg, err := ds.app.Scheduler.Config()
	if err != nil {
		ds.log(fmt.Sprintf(" - FAIL: Could not read the schedule config: %v", err))
		return
	}
	ds.log(fmt.Sprintf(" - INFO: Recurrence %s, day parts %v, max %d per %s, enabled %v.",
		cfg.Recurrence, cfg.DayParts, cfg.MaxPostsPerDay, cfg.CapScope, cfg.Enabled))

	st, err := ds.app.Scheduler.Statistics()
	if err != nil {
		ds.log(fmt.Sprintf(" - FAIL: Could not compute statistics: %v", err))
		return
	}
	ds.log(fmt.Sprintf(" - INFO: %d schedules: %d pending, %d executed, %d failed, %d cancelled (%.1f%% success).",
		st.Total, st.Pending, st.Executed, st.Failed, st.Cancelled, st.SuccessRate))

	pending, err := ds.app.Scheduler.ListPending()
	if err != nil {
		return
	}
	overdue := 0
	now := time.Now()
	for _, s := range pending {
		if s.ScheduledTime.Before(now.Add(-ds.cfg.Scheduler.PollInterval() * 2)) {
			overdue++
		}
	}
	if overdue > 0 {
		ds.log(fmt.Sprintf(" - WARN: %d pending schedules are overdue. Is the executor running?", overdue))
	} else {
		ds.log(" - PASS: No overdue schedules.")
	}
}

func (ds *DiagnosisSuite) saveReport() {
	outputFile := ds.flags.OutputFile
	if outputFile == "" {
		outputFile = fmt.Sprintf("diagnosis-report-%s.txt", time.Now().Format("2006-01-02_15-04-05"))
	}

	err := os.WriteFile(outputFile, []byte(ds.report.String()), 0644)
	if err != nil {
		fmt.Fprintf(ds.out, "\nCould not save report to %s: %v\n", outputFile, err)
	} else {
		fmt.Fprintf(ds.out, "\nDiagnosis report saved to %s\n", outputFile)
	}
}
