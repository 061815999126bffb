package main

import (
	"fmt"
	"os"

	"github.com/handiism/streetgrab/internal/config"
	"github.com/handiism/streetgrab/internal/logger"
	"github.com/handiism/streetgrab/internal/tui"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.String("config", "", "config file (yaml, toml or json)")
	logFile := pflag.String("log-file", "", "write logs to this file (the terminal belongs to the UI)")
	pflag.Parse()

	// A load error is shown inside the UI instead of aborting.
	settings, loadErr := config.Load(viper.New(), *configPath)

	log := zap.NewNop()
	if *logFile != "" {
		level := config.DefaultSettings().LogLevel
		if settings != nil {
			level = settings.LogLevel
		}
		l, err := logger.NewWithOutput(level, *logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			os.Exit(1)
		}
		log = l
	}
	defer func() { _ = log.Sync() }()

	if err := tui.Run(settings, log, loadErr); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
