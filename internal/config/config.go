package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Horizons controls how far ahead the schedule service plans and how often
// the daemon's maintenance loop runs.
type Horizons struct {
	PlaylogHours        int    `toml:"playlog_hours"`
	EPGDays             int    `toml:"epg_days"`
	PollIntervalSeconds int    `toml:"poll_interval"`
	CycleTimeoutSeconds int    `toml:"cycle_timeout"`
	FillerTag           string `toml:"filler_tag"`
}

// Runtime contains channel playout timing and failure policy.
type Runtime struct {
	StartTimeoutSeconds   int    `toml:"start_timeout"`
	StopTimeoutSeconds    int    `toml:"stop_timeout"`
	PlanWindowMinutes     int    `toml:"plan_window_minutes"`
	RestartBackoffSeconds int    `toml:"restart_backoff"`
	CrashWindowSeconds    int    `toml:"crash_window"`
	MaxRapidCrashes       int    `toml:"max_rapid_crashes"`
	FallbackMode          string `toml:"fallback_mode"`
	SegmentIntervalMS     int    `toml:"segment_interval_ms"`
	HubCapacity           int    `toml:"hub_capacity"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
	ConfigurationGaps  bool   `toml:"configuration_gaps"`
	ProducerFailures   bool   `toml:"producer_failures"`
	ModeChanges        bool   `toml:"mode_changes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// FallbackGuide and FallbackSlate are the supported off-air behaviors when a
// viewer tunes into a channel with no covering playlog event.
const (
	FallbackGuide = "guide"
	FallbackSlate = "slate"
)

// Config encapsulates all configuration values for RetroVue.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the daemon control socket
//   - Horizons: playlog/EPG lookahead and maintenance loop cadence
//   - Runtime: producer timeouts, crash policy, fallback behavior
//   - Notifications: ntfy operator alerting
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Horizons      Horizons      `toml:"horizons"`
	Runtime       Runtime       `toml:"runtime"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/retrovue/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found (false means defaults are in effect).
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.DataDir, "retrovued.sock")
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	c.Runtime.FallbackMode = strings.ToLower(strings.TrimSpace(c.Runtime.FallbackMode))
	if c.Runtime.FallbackMode == "" {
		c.Runtime.FallbackMode = FallbackGuide
	}
	c.Horizons.FillerTag = strings.TrimSpace(c.Horizons.FillerTag)
	if c.Horizons.FillerTag == "" {
		c.Horizons.FillerTag = defaultFillerTag
	}
	return nil
}

// Validate checks configuration invariants that normalization cannot repair.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Horizons.PlaylogHours <= 0 {
		return fmt.Errorf("horizons.playlog_hours must be positive, got %d", c.Horizons.PlaylogHours)
	}
	if c.Horizons.EPGDays <= 0 {
		return fmt.Errorf("horizons.epg_days must be positive, got %d", c.Horizons.EPGDays)
	}
	if c.Horizons.PollIntervalSeconds <= 0 {
		return fmt.Errorf("horizons.poll_interval must be positive, got %d", c.Horizons.PollIntervalSeconds)
	}
	if c.Horizons.CycleTimeoutSeconds <= 0 {
		return fmt.Errorf("horizons.cycle_timeout must be positive, got %d", c.Horizons.CycleTimeoutSeconds)
	}
	switch c.Runtime.FallbackMode {
	case FallbackGuide, FallbackSlate:
	default:
		return fmt.Errorf("runtime.fallback_mode must be %q or %q, got %q", FallbackGuide, FallbackSlate, c.Runtime.FallbackMode)
	}
	if c.Runtime.StartTimeoutSeconds <= 0 {
		return fmt.Errorf("runtime.start_timeout must be positive, got %d", c.Runtime.StartTimeoutSeconds)
	}
	if c.Runtime.StopTimeoutSeconds <= 0 {
		return fmt.Errorf("runtime.stop_timeout must be positive, got %d", c.Runtime.StopTimeoutSeconds)
	}
	if c.Runtime.MaxRapidCrashes <= 0 {
		return fmt.Errorf("runtime.max_rapid_crashes must be positive, got %d", c.Runtime.MaxRapidCrashes)
	}
	return nil
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
