package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/service"
	"github.com/agnosto/autoposter/utils"
	"github.com/schollz/progressbar/v3"
)

func runSchedule(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter schedule <add|list|pending|show|cancel|recurring>")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "add":
		return scheduleAdd(app, rest)
	case "list":
		fs := newFlagSet("schedule list")
		status := fs.String("status", "", "Only schedules with this status")
		limit := fs.Int("limit", 50, "Maximum number of schedules")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		var st core.ScheduleStatus
		if *status != "" {
			var err error
			if st, err = core.ParseScheduleStatus(*status); err != nil {
				return err
			}
		}
		list, err := app.Scheduler.ListSchedules(st, *limit)
		if err != nil {
			return err
		}
		printSchedules(app.Out, list)
		return nil
	case "pending":
		list, err := app.Scheduler.ListPending()
		if err != nil {
			return err
		}
		printSchedules(app.Out, list)
		return nil
	case "show":
		id, err := singleArg("schedule show <id>", rest)
		if err != nil {
			return err
		}
		s, err := app.Scheduler.GetSchedule(id)
		if err != nil {
			return err
		}
		return printJSON(app.Out, s)
	case "cancel":
		id, err := singleArg("schedule cancel <id>", rest)
		if err != nil {
			return err
		}
		ok, err := app.Scheduler.CancelSchedule(id)
		if err != nil {
			return err
		}
		if !ok {
			warn(app.Out, "Schedule %s was not cancelled: it is unknown, no longer pending, or being published.", id)
			return nil
		}
		success(app.Out, "Cancelled schedule %s.", id)
		return nil
	case "recurring":
		return scheduleRecurring(app, rest)
	}
	return fmt.Errorf("unknown schedule command %q", sub)
}

func scheduleAdd(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter schedule add <post-id> -at <time> [-recurrence once]")
	}
	postID := args[0]

	fs := newFlagSet("schedule add")
	at := fs.String("at", "", "When to publish (required)")
	recurrence := fs.String("recurrence", string(core.RecurrenceOnce), "once, daily, weekly or monthly")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	when, err := parseAt(*at)
	if err != nil {
		return err
	}
	if when == nil {
		return fmt.Errorf("%w: -at is required", core.ErrValidation)
	}

	s, err := app.Scheduler.SchedulePost(postID, *when, core.Recurrence(*recurrence))
	if err != nil {
		return err
	}
	success(app.Out, "Scheduled post %s at %s (schedule %s).", postID, formatTime(when), s.ID)
	return nil
}

// scheduleConfigFlags registers the ScheduleConfig flags shared by
// "schedule recurring" and "config schedule".
type scheduleConfigFlags struct {
	recurrence *string
	start      *string
	end        *string
	interval   *int
	days       *string
	parts      *string
	maxPerDay  *int
	capScope   *string
	enabled    *bool
}

func addScheduleConfigFlags(fs *flag.FlagSet) scheduleConfigFlags {
	return scheduleConfigFlags{
		recurrence: fs.String("type", "", "Recurrence: once, daily, weekly or monthly"),
		start:      fs.String("start", "", "Start time"),
		end:        fs.String("end", "", "End time; \"none\" clears it"),
		interval:   fs.Int("interval", 0, "Interval in hours"),
		days:       fs.String("days", "", "Weekdays, 0=Monday, e.g. \"5,6\" or \"sat,sun\""),
		parts:      fs.String("parts", "", "Day parts: morning, lunch, evening, night"),
		maxPerDay:  fs.Int("max", 0, "Maximum posts per day (or per run with -scope run)"),
		capScope:   fs.String("scope", "", "Cap scope: day or run"),
		enabled:    fs.Bool("enabled", true, "Whether the config is enabled"),
	}
}

// toUpdate converts the flags that were set into a ConfigUpdate.
func (f scheduleConfigFlags) toUpdate(set map[string]bool) (service.ConfigUpdate, error) {
	var upd service.ConfigUpdate
	if set["type"] {
		rec, err := core.ParseRecurrence(*f.recurrence)
		if err != nil {
			return upd, err
		}
		upd.Recurrence = &rec
	}
	if set["start"] {
		t, err := parseAt(*f.start)
		if err != nil {
			return upd, err
		}
		upd.Start = t
	}
	if set["end"] {
		if *f.end == "none" || *f.end == "" {
			upd.ClearEnd = true
		} else {
			t, err := parseAt(*f.end)
			if err != nil {
				return upd, err
			}
			upd.End = t
		}
	}
	if set["interval"] {
		upd.IntervalHours = f.interval
	}
	if set["days"] {
		days, err := utils.ParseWeekdays(*f.days)
		if err != nil {
			return upd, fmt.Errorf("%w: %v", core.ErrValidation, err)
		}
		upd.DaysOfWeek = &days
	}
	if set["parts"] {
		var parts []core.DayPart
		for _, s := range utils.SplitList(*f.parts) {
			p, err := core.ParseDayPart(s)
			if err != nil {
				return upd, err
			}
			parts = append(parts, p)
		}
		upd.DayParts = &parts
	}
	if set["max"] {
		upd.MaxPostsPerDay = f.maxPerDay
	}
	if set["scope"] {
		scope, err := core.ParseCapScope(*f.capScope)
		if err != nil {
			return upd, err
		}
		upd.CapScope = &scope
	}
	if set["enabled"] {
		upd.Enabled = f.enabled
	}
	return upd, nil
}

// apply overlays upd on cfg without storing anything.
func apply(cfg core.ScheduleConfig, upd service.ConfigUpdate) core.ScheduleConfig {
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
		cfg.End = upd.End
	}
	if upd.IntervalHours != nil {
		cfg.IntervalHours = *upd.IntervalHours
	}
	if upd.DaysOfWeek != nil {
		cfg.DaysOfWeek = *upd.DaysOfWeek
	}
	if upd.DayParts != nil {
		cfg.DayParts = *upd.DayParts
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
	return cfg
}

func scheduleRecurring(app *App, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter schedule recurring <template> [flags]")
	}
	templateName := args[0]

	fs := newFlagSet("schedule recurring")
	cfgFlags := addScheduleConfigFlags(fs)
	vars := keyValues{}
	fs.Var(vars, "var", "Extra template variable as key=value (repeatable)")
	quiet := fs.Bool("quiet", false, "Do not show progress")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	upd, err := cfgFlags.toUpdate(visited(fs))
	if err != nil {
		return err
	}
	base, err := app.Scheduler.Config()
	if err != nil {
		return err
	}
	cfg := apply(*base, upd)
	if upd.Start == nil {
		cfg.Start = time.Now()
	}

	var bar *progressbar.ProgressBar
	opts := service.RecurringOptions{Vars: vars}
	if !*quiet {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Creating schedules"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(15),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
		)
		opts.OnCreate = func(core.Schedule) { _ = bar.Add(1) }
	}

	created, err := app.Scheduler.CreateRecurringSchedule(templateName, cfg, opts)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	success(app.Out, "Created %d schedules from template %s.", len(created), templateName)
	printSchedules(app.Out, created)
	return nil
}
