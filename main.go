package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/tinyrange/clearloop/internal/config"
	"github.com/tinyrange/clearloop/internal/graphics"
	"github.com/tinyrange/clearloop/internal/window"
)

// Cocoa and GLFW require the event loop and GL context on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (default ~/.config/clearloop/config.yaml)")
	backend := fs.String("backend", "", "window backend, overrides config")
	verbose := fs.Bool("v", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	if *configPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		*configPath = path
	}

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	platform, err := window.New(cfg.Backend)
	if err != nil {
		logger.Error("select backend", "error", err)
		return 1
	}

	driver := graphics.New(platform,
		graphics.WithLogger(logger.With("backend", cfg.Backend)),
		graphics.WithGLInfo(cfg.GLInfo),
	)
	if err := driver.Run(); err != nil {
		logger.Error("run loop", "error", err)
		return 1
	}
	return 0
}
