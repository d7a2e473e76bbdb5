package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/agnosto/autoposter/cmd"
	"github.com/agnosto/autoposter/config"
	"github.com/agnosto/autoposter/logger"
	"github.com/fatih/color"
)

func main() {
	flags, args := cmd.ParseFlags()

	if flags.Version {
		fmt.Printf("autoposter version %s\n", cmd.Version)
		return
	}
	if len(args) == 0 {
		cmd.Usage(os.Stderr)
		os.Exit(2)
	}

	if loaded, err := config.LoadEnv(); err != nil {
		log.Printf("Error loading .env: %v", err)
	} else if len(loaded) > 0 {
		log.Printf("Loaded environment from %v", loaded)
	}

	configPath := flags.ConfigPath
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	config.VerifyConfigOnStartup(configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if handled, err := cmd.RunStandalone(ctx, configPath, args, os.Stdout); handled {
		exitOnError(err)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil && args[0] != "diagnose" {
		// Only fatal if not running diagnosis, as diagnosis can report a broken config
		log.Fatal(err)
	}

	if cfg != nil {
		if err := logger.InitLogger(cfg); err != nil {
			log.Fatal(err)
		}
	}

	if args[0] == "diagnose" {
		diagFlags, err := cmd.ParseDiagnosisFlags(args[1:])
		exitOnError(err)
		cmd.NewDiagnosisSuite(diagFlags, cfg, configPath, os.Stdout).Run(ctx)
		return
	}

	logger.Logger.WithField("version", cmd.Version).Info("Starting autoposter")

	app, err := cmd.NewApp(cfg, configPath, os.Stdout)
	if err != nil {
		logger.Logger.WithError(err).Error("Startup failed")
		exitOnError(err)
	}

	err = cmd.Execute(ctx, app, args)
	app.Close()
	exitOnError(err)
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
