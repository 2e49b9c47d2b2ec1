package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"zonewatch/internal/app"
	"zonewatch/internal/config"
	"zonewatch/internal/logger"
	"zonewatch/internal/model"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration")
	source := flag.String("source", "", "Camera index, stream URL or video file")
	roi := flag.Bool("roi", false, "Only alert on detections inside configured zones")
	alertObjects := flag.String("alert-objects", "", "Comma separated classes that trigger alerts")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the file and environment only when given explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source.Input = *source
		case "roi":
			cfg.Alerting.ROIEnabled = *roi
		case "alert-objects":
			cfg.SetWatchedClasses(*alertObjects)
		case "debug":
			cfg.Debug = *debug
		}
	})

	if err := cfg.Validate(); err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("Invalid configuration: %v", cfgErr)
		}
		log.Fatalf("Failed to validate configuration: %v", err)
	}

	l := logger.NewLogger(cfg)

	application, err := app.NewApp(cfg, l)
	if err != nil {
		l.Error("Failed to start: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		l.Error("Stopped with error: %v", err)
		os.Exit(1)
	}
}
