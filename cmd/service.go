package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/agnosto/autoposter/logger"
	"github.com/agnosto/autoposter/service"
	ksvc "github.com/kardianos/service"
)

type Program struct {
	scheduler *service.Scheduler
	cancel    context.CancelFunc
	done      chan struct{}
}

func (p *Program) Start(s ksvc.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

func (p *Program) run(ctx context.Context) {
	defer close(p.done)
	if err := p.scheduler.Run(ctx); err != nil {
		logger.Logger.WithError(err).Error("Schedule executor stopped with error")
	}
}

func (p *Program) Stop(s ksvc.Service) error {
	p.scheduler.Shutdown()
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
	return nil
}

func serviceConfig(configPath string) *ksvc.Config {
	args := []string{"service", "run"}
	if abs, err := filepath.Abs(configPath); err == nil {
		args = append([]string{"-config", abs}, args...)
	}
	return &ksvc.Config{
		Name:        "Autoposter",
		DisplayName: "Autoposter Scheduler",
		Description: "Publishes scheduled posts when they are due.",
		Arguments:   args,
	}
}

// runServiceCommand controls the OS service, or runs as it with "run".
func runServiceCommand(app *App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: autoposter service <install|uninstall|start|stop|restart|run>")
	}

	prg := &Program{scheduler: app.Scheduler}
	s, err := ksvc.New(prg, serviceConfig(app.ConfigPath))
	if err != nil {
		return fmt.Errorf("error creating service: %w", err)
	}

	action := args[0]
	if action == "run" {
		logger.Logger.Info("Running as service")
		return s.Run()
	}
	if err := ksvc.Control(s, action); err != nil {
		return fmt.Errorf("service %s failed: %w", action, err)
	}
	success(app.Out, "Service %s done.", action)
	return nil
}
