package config

import "time"

const (
	defaultDataDir             = "~/.local/share/retrovue"
	defaultLogDir              = "~/.local/share/retrovue/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultPlaylogHours        = 2
	defaultEPGDays             = 2
	defaultPollInterval        = 30
	defaultCycleTimeout        = 60
	defaultFillerTag           = "filler"
	defaultStartTimeout        = 10
	defaultStopTimeout         = 10
	defaultPlanWindowMinutes   = 30
	defaultRestartBackoff      = 5
	defaultCrashWindow         = 300
	defaultMaxRapidCrashes     = 3
	defaultSegmentIntervalMS   = 1000
	defaultHubCapacity         = 256
	defaultNotifyTimeout       = 10
	defaultNotifyDedupSeconds  = 600
	defaultNotifyConfigGaps    = true
	defaultNotifyProducerFails = true
	defaultNotifyModeChanges   = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Horizons: Horizons{
			PlaylogHours:        defaultPlaylogHours,
			EPGDays:             defaultEPGDays,
			PollIntervalSeconds: defaultPollInterval,
			CycleTimeoutSeconds: defaultCycleTimeout,
			FillerTag:           defaultFillerTag,
		},
		Runtime: Runtime{
			StartTimeoutSeconds:   defaultStartTimeout,
			StopTimeoutSeconds:    defaultStopTimeout,
			PlanWindowMinutes:     defaultPlanWindowMinutes,
			RestartBackoffSeconds: defaultRestartBackoff,
			CrashWindowSeconds:    defaultCrashWindow,
			MaxRapidCrashes:       defaultMaxRapidCrashes,
			FallbackMode:          FallbackGuide,
			SegmentIntervalMS:     defaultSegmentIntervalMS,
			HubCapacity:           defaultHubCapacity,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			DedupWindowSeconds: defaultNotifyDedupSeconds,
			ConfigurationGaps:  defaultNotifyConfigGaps,
			ProducerFailures:   defaultNotifyProducerFails,
			ModeChanges:        defaultNotifyModeChanges,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// PlaylogHorizon returns the playlog lookahead as a duration.
func (c *Config) PlaylogHorizon() time.Duration {
	return time.Duration(c.Horizons.PlaylogHours) * time.Hour
}

// EPGHorizon returns the EPG lookahead as a duration.
func (c *Config) EPGHorizon() time.Duration {
	return time.Duration(c.Horizons.EPGDays) * 24 * time.Hour
}

// PollInterval returns the maintenance loop cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Horizons.PollIntervalSeconds) * time.Second
}

// CycleTimeout bounds a single per-channel horizon extension cycle.
func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.Horizons.CycleTimeoutSeconds) * time.Second
}
