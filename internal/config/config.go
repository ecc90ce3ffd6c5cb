// Package config provides configuration management for the CamTrap Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort         = 8799
	DefaultLogLevel     = "info"
	DefaultDataDir      = ".camtrap"
	DefaultGapSeconds   = 60
	DefaultScanInterval = 5 // seconds

	// Environment variable names
	EnvPort         = "CAMTRAP_PORT"
	EnvLogLevel     = "CAMTRAP_LOG_LEVEL"
	EnvDataDir      = "CAMTRAP_DATA_DIR"
	EnvGapSeconds   = "CAMTRAP_GAP_SECONDS"
	EnvScanInterval = "CAMTRAP_SCAN_INTERVAL"
	EnvHeadless     = "CAMTRAP_HEADLESS"

	// Database filename
	DBFilename = "camtrap.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	GapSeconds() int
	ScanInterval() time.Duration
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	gapSeconds   int
	scanInterval time.Duration
	headless     bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		gapSeconds:   DefaultGapSeconds,
		scanInterval: DefaultScanInterval * time.Second,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	// Override default sequence gap from environment. Zero selects event-based
	// grouping, so it is a valid value here.
	if gs := os.Getenv(EnvGapSeconds); gs != "" {
		gap, err := strconv.Atoi(gs)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvGapSeconds, err)
		}
		if gap < 0 {
			return nil, fmt.Errorf("invalid %s: gap must not be negative", EnvGapSeconds)
		}
		cfg.gapSeconds = gap
	}

	// Override scan poll interval from environment
	if si := os.Getenv(EnvScanInterval); si != "" {
		secs, err := strconv.Atoi(si)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvScanInterval, err)
		}
		if secs < 1 {
			return nil, fmt.Errorf("invalid %s: interval must be at least 1 second", EnvScanInterval)
		}
		cfg.scanInterval = time.Duration(secs) * time.Second
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// GapSeconds returns the default sequence gap threshold in seconds
func (c *EnvConfig) GapSeconds() int {
	return c.gapSeconds
}

// ScanInterval returns how often the job runner polls for pending work
func (c *EnvConfig) ScanInterval() time.Duration {
	return c.scanInterval
}

// Headless reports whether the system tray should be disabled
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
