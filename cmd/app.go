package cmd

import (
	"fmt"
	"io"

	"github.com/agnosto/autoposter/config"
	"github.com/agnosto/autoposter/db"
	"github.com/agnosto/autoposter/db/repository"
	"github.com/agnosto/autoposter/logger"
	"github.com/agnosto/autoposter/notifications"
	"github.com/agnosto/autoposter/posts"
	"github.com/agnosto/autoposter/publisher"
	"github.com/agnosto/autoposter/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "v0.1.0"

// App is the wired object graph shared by the commands.
type App struct {
	Config     *config.Config
	ConfigPath string
	DB         *db.Database
	Store      *repository.Store
	Publisher  publisher.Publisher
	Manager    *posts.Manager
	Scheduler  *service.Scheduler
	Registry   *prometheus.Registry
	Out        io.Writer
}

func NewApp(cfg *config.Config, configPath string, out io.Writer) (*App, error) {
	database, err := db.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	app, err := newApp(cfg, configPath, database, out)
	if err != nil {
		database.Close()
		return nil, err
	}
	return app, nil
}

func newApp(cfg *config.Config, configPath string, database *db.Database, out io.Writer) (*App, error) {
	pub, err := publisher.New(cfg.Publisher, logger.Logger)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(database.DB)
	manager := posts.NewManager(store, pub,
		posts.WithLogger(logger.Logger),
		posts.WithPublishTimeout(cfg.Scheduler.PublishTimeout()),
	)
	if _, err := manager.EnsureDefaultTemplates(); err != nil {
		return nil, fmt.Errorf("failed to seed templates: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	scheduler, err := service.NewScheduler(manager, service.Options{
		PollInterval:           cfg.Scheduler.PollInterval(),
		ValidatePostOnSchedule: cfg.Scheduler.ValidatePostOnSchedule,
		MaxGeneratedSchedules:  cfg.Scheduler.MaxGeneratedSchedules,
		MaxGenerationDays:      cfg.Scheduler.MaxGenerationDays,
	},
		service.WithLogger(logger.Logger),
		service.WithMetrics(service.NewMetrics(registry)),
		service.WithNotifier(notifications.NewNotificationService(cfg.Notifications,
			notifications.WithLogger(logger.Logger))),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		DB:         database,
		Store:      store,
		Publisher:  pub,
		Manager:    manager,
		Scheduler:  scheduler,
		Registry:   registry,
		Out:        out,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
