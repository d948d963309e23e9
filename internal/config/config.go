// Package config loads client settings from a .env file and the environment
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"schack-online/internal/network"
	"schack-online/pkg/logger"
)

// Defaults
const (
	DefaultServerAddr    = "127.0.0.1:6000"
	DefaultLogLevel      = "INFO"
	DefaultLogDir        = "./logs"
	DefaultTickInterval  = 50 * time.Millisecond
	DefaultResetInterval = 0
	DefaultArchiveDriver = "file"
	DefaultArchiveDir    = "./data"
	DefaultArchiveDB     = "schack"
)

// Config holds everything the client needs to start
type Config struct {
	ServerAddr string
	Room       string

	LogLevel string
	LogFile  string
	LogDir   string

	PollInterval  time.Duration
	TickInterval  time.Duration
	MatchTimeout  time.Duration
	ResetInterval time.Duration // minimum gap between local resets, 0 for none

	RelaySecret string

	ArchiveDriver string
	ArchiveDir    string
	ArchiveDSN    string
	ArchiveDB     string
}

// Load reads envFile (if present) into the environment and builds a Config.
// An empty envFile means ".env". Malformed durations are errors.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		logger.Client.Debug("No %s file, using environment only", envFile)
	}

	cfg := &Config{
		ServerAddr:    getString("SERVER_ADDR", DefaultServerAddr),
		Room:          strings.TrimSpace(os.Getenv("ROOM")),
		LogLevel:      getString("LOG_LEVEL", DefaultLogLevel),
		LogFile:       os.Getenv("LOG_FILE"),
		LogDir:        getString("LOG_DIR", DefaultLogDir),
		RelaySecret:   os.Getenv("RELAY_SECRET"),
		ArchiveDriver: strings.ToLower(getString("ARCHIVE_DRIVER", DefaultArchiveDriver)),
		ArchiveDir:    getString("ARCHIVE_DIR", DefaultArchiveDir),
		ArchiveDSN:    os.Getenv("ARCHIVE_DSN"),
		ArchiveDB:     getString("ARCHIVE_DB", DefaultArchiveDB),
	}

	var err error
	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", network.DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.TickInterval, err = getDuration("TICK_INTERVAL", DefaultTickInterval); err != nil {
		return nil, err
	}
	if cfg.MatchTimeout, err = getDuration("MATCH_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.ResetInterval, err = getDuration("RESET_INTERVAL", DefaultResetInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that must be known before connecting
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerAddr) == "" {
		return fmt.Errorf("server address is required")
	}
	if err := ValidateRoom(c.Room); err != nil {
		return err
	}
	if c.PollInterval <= 0 || c.TickInterval <= 0 {
		return fmt.Errorf("poll and tick intervals must be positive")
	}
	if c.MatchTimeout < 0 || c.ResetInterval < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch c.ArchiveDriver {
	case "file", "mysql", "mongo", "none":
	default:
		return fmt.Errorf("unknown archive driver %q", c.ArchiveDriver)
	}
	if (c.ArchiveDriver == "mysql" || c.ArchiveDriver == "mongo") && c.ArchiveDSN == "" {
		return fmt.Errorf("archive driver %s needs ARCHIVE_DSN", c.ArchiveDriver)
	}
	return nil
}

// ValidateRoom checks that name can be used as a room on the wire
func ValidateRoom(name string) error {
	if err := network.ValidateRoomName(name); err != nil {
		return fmt.Errorf("invalid room name: %w", err)
	}
	return nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
