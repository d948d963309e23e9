// Schack online client - Main Entry Point
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"schack-online/internal/archive"
	"schack-online/internal/client"
	"schack-online/internal/config"
	"schack-online/internal/session"
	"schack-online/pkg/logger"
)

var (
	version    = "1.0.0"
	envFile    = flag.String("env", ".env", "Environment file to load")
	serverAddr = flag.String("server", "", "Relay address (host:port or ws://host/path)")
	room       = flag.String("room", "", "Room name")
	logLevel   = flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	logFile    = flag.String("log-file", "", "Log file path (optional)")
	archiveDrv = flag.String("archive", "", "Game archive driver (file, mysql, mongo, none)")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	applyFlags(cfg)

	// Initialize logging
	if err := initLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer logger.Client.Sync()

	logger.Client.Info("Starting Schack online client v%s", version)

	input := client.NewInputHandler()
	promptMissing(cfg, input)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := archive.Open(ctx, archive.Config{
		Driver: cfg.ArchiveDriver,
		Dir:    cfg.ArchiveDir,
		DSN:    cfg.ArchiveDSN,
		DB:     cfg.ArchiveDB,
	})
	if err != nil {
		// archiving is optional; play on without it
		logger.Archive.Warn("Game archive disabled: %v", err)
		store = archive.Nop{}
	}
	defer store.Close()

	gameClient := client.NewClient(cfg, client.NewDisplay(), input, store)
	err = gameClient.Start(ctx)

	var desync *session.DesyncError
	switch {
	case err == nil:
		logger.Client.Info("Client shutting down gracefully")
		return 0
	case errors.As(err, &desync):
		// a detected desync is an orderly end of the session
		logger.Client.Warn("Session ended: %v", err)
		return 0
	default:
		logger.Client.Error("Client stopped: %v", err)
		return 1
	}
}

// applyFlags lets command line flags override the environment
func applyFlags(cfg *config.Config) {
	if *serverAddr != "" {
		cfg.ServerAddr = *serverAddr
	}
	if *room != "" {
		cfg.Room = *room
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *archiveDrv != "" {
		cfg.ArchiveDriver = *archiveDrv
	}
}

// promptMissing asks for the server and room when neither flags nor the
// environment named them
func promptMissing(cfg *config.Config, input *client.InputHandler) {
	if *serverAddr == "" && os.Getenv("SERVER_ADDR") == "" {
		prompt := fmt.Sprintf("Enter server IP and port (press enter to use default %s): ", cfg.ServerAddr)
		cfg.ServerAddr = input.Prompt(prompt, cfg.ServerAddr)
	}

	for cfg.Room == "" {
		cfg.Room = input.Prompt("Enter room name: ", "")
		if cfg.Room == "" {
			// stdin closed
			return
		}
		if err := config.ValidateRoom(cfg.Room); err != nil {
			fmt.Fprintln(os.Stderr, err)
			cfg.Room = ""
		}
	}
}

// initLogging sets up the logging system
func initLogging(cfg *config.Config) error {
	level, ok := logger.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logger.INFO
	}
	logger.SetGlobalLogLevel(level)

	// Set up file logging if specified
	if cfg.LogFile != "" {
		if err := logger.Client.SetFile(cfg.LogFile); err != nil {
			return fmt.Errorf("failed to set log file: %w", err)
		}
		logger.Client.Info("Logging to file: %s", cfg.LogFile)
	} else {
		// Initialize default file logging
		if err := logger.InitializeFileLogging(cfg.LogDir); err != nil {
			// Don't fail if we can't create log directory, just log to console
			logger.Client.Warn("Could not initialize file logging: %v", err)
		}
	}

	return nil
}
