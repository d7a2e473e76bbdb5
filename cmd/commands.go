package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/agnosto/autoposter/config"
	"github.com/agnosto/autoposter/ui"
	"github.com/agnosto/autoposter/updater"
	"github.com/agnosto/autoposter/utils"
)

// RunStandalone handles the commands that need no database. It reports
// whether args named one of them.
func RunStandalone(ctx context.Context, configPath string, args []string, out io.Writer) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	switch args[0] {
	case "version":
		return true, runVersion(ctx, args[1:], out)
	case "update":
		return true, updater.CheckForUpdate(ctx, Version)
	case "help":
		Usage(out)
		return true, nil
	case "config":
		if len(args) > 1 && args[1] == "schedule" {
			return false, nil
		}
		return true, runConfig(configPath, args[1:], out)
	}
	return false, nil
}

// Execute runs a command against the wired application.
func Execute(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 {
		Usage(app.Out)
		return errors.New("no command given")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return runExecutor(ctx, app, rest)
	case "service":
		return runServiceCommand(app, rest)
	case "dashboard":
		fs := newFlagSet("dashboard")
		refresh := fs.Duration("refresh", 5*time.Second, "Reload interval")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return ui.Run(app.Scheduler, Version, *refresh)
	case "post":
		return runPost(ctx, app, rest)
	case "schedule":
		return runSchedule(app, rest)
	case "template":
		return runTemplate(app, rest)
	case "stats":
		fs := newFlagSet("stats")
		asJSON := fs.Bool("json", false, "Print as JSON")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		st, err := app.Scheduler.Statistics()
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(app.Out, st)
		}
		printStatistics(app.Out, st)
		return nil
	case "suggest":
		return runSuggest(app, rest)
	case "config":
		if len(rest) > 0 && rest[0] == "schedule" {
			return runConfigSchedule(app, rest[1:])
		}
		return runConfig(app.ConfigPath, rest, app.Out)
	}
	Usage(app.Out)
	return fmt.Errorf("unknown command %q", cmd)
}

func runVersion(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("version")
	check := fs.Bool("check", false, "Check GitHub for a newer release")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(out, "autoposter version %s\n", Version)
	if !*check {
		return nil
	}
	available, latest, err := updater.CheckUpdateAvailable(ctx, Version)
	if err != nil {
		return err
	}
	if available {
		warn(out, "Update %s available! Run 'autoposter update' to update.", latest)
	} else {
		success(out, "You are on the latest version.")
	}
	return nil
}

func runSuggest(app *App, args []string) error {
	fs := newFlagSet("suggest")
	date := fs.String("date", "", "Day to plan (default: today)")
	limit := fs.Int("max", 3, "Maximum number of suggestions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	day := time.Now()
	if *date != "" {
		t, err := utils.ParseTimeArg(*date, time.Local)
		if err != nil {
			return err
		}
		day = t
	}

	times, err := app.Scheduler.SuggestOptimalTimes(day, *limit)
	if err != nil {
		return err
	}
	if len(times) == 0 {
		warn(app.Out, "No remaining slots on %s.", day.Format("2006-01-02"))
		return nil
	}
	for _, t := range times {
		fmt.Fprintln(app.Out, t.Format("2006-01-02 15:04"))
	}
	return nil
}

func runConfig(configPath string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: autoposter config <show|set|edit|schedule>")
	}
	switch args[0] {
	case "show":
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n", configPath)
		return toml.NewEncoder(out).Encode(redactConfig(*cfg))
	case "set":
		if len(args) != 3 {
			return errors.New("usage: autoposter config set <section.key> <value>")
		}
		if err := config.SetValue(configPath, args[1], args[2]); err != nil {
			return err
		}
		success(out, "Set %s in %s.", args[1], configPath)
		return nil
	case "edit":
		return config.OpenConfigInEditor(configPath)
	}
	return fmt.Errorf("unknown config command %q", args[0])
}

func runConfigSchedule(app *App, args []string) error {
	fs := newFlagSet("config schedule")
	cfgFlags := addScheduleConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := visited(fs)
	if len(set) == 0 {
		cfg, err := app.Scheduler.Config()
		if err != nil {
			return err
		}
		return printJSON(app.Out, cfg)
	}

	upd, err := cfgFlags.toUpdate(set)
	if err != nil {
		return err
	}
	cfg, err := app.Scheduler.UpdateConfig(upd)
	if err != nil {
		return err
	}
	success(app.Out, "Schedule config updated.")
	return printJSON(app.Out, cfg)
}

// redactConfig masks credentials so the config can be shown or shared.
func redactConfig(cfg config.Config) config.Config {
	cfg.Publisher.XBearerToken = utils.RedactSecret(cfg.Publisher.XBearerToken)
	cfg.Notifications.DiscordWebhook = utils.RedactURL(cfg.Notifications.DiscordWebhook)
	cfg.Notifications.TelegramBotToken = utils.RedactSecret(cfg.Notifications.TelegramBotToken)
	cfg.Notifications.TelegramChatID = utils.RedactSecret(cfg.Notifications.TelegramChatID)
	return cfg
}
