package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/coreprint/spoold/config"
	"github.com/coreprint/spoold/engines"
)

func main() {
	configPath := flag.String("config", "spoold.yaml", "path to configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	showHelp := flag.Bool("help", false, "show usage")
	flag.Parse()

	if *showHelp {
		fmt.Println("spoold: a print job spooler pipeline")
		fmt.Println("\nUsage: spoold [options]")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		fmt.Println("\nExample:")
		fmt.Println("  spoold -config=/etc/spoold/spoold.yaml -log-level=debug")
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	setupLogging(cfg.Logging.Level)

	engine, err := engines.NewFromConfig(cfg)
	if err != nil {
		log.Fatal("Error: ", err)
	}

	if err := engine.Run(context.Background()); err != nil {
		log.Fatal("Error: ", err)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
}
