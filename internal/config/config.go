// Package config loads missiond configuration from a YAML file with
// environment-variable overrides. All knobs default to the values the
// mission controller shipped with; a missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	Mission MissionConfig `yaml:"mission"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Health  HealthConfig  `yaml:"health"`
}

// DaemonConfig covers the RPC listener.
type DaemonConfig struct {
	// Addr is the HTTP JSON-RPC listen address.
	Addr string `yaml:"addr"`
	// Token is the bearer token required on every RPC call.
	// Empty means the RPC endpoint rejects all requests.
	Token string `yaml:"token"`
}

// MissionConfig covers the duplication mission lifecycle.
type MissionConfig struct {
	// TargetLanguages is the fan-out set, in processing order.
	TargetLanguages []string `yaml:"target_languages"`
	// DailyLimit caps successfully admitted missions per calendar day.
	DailyLimit int `yaml:"daily_limit"`
	// ScheduleDelay is how long after admission execution fires.
	ScheduleDelay time.Duration `yaml:"schedule_delay"`
	// MaxExecutionTime bounds one mission execution. The breaker timeout is
	// derived from it: max(2*MaxExecutionTime, 15m).
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	// RetryDelay is the fixed delay before a failed mission is retried.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// BusyDelay is the re-enqueue delay when the breaker is held.
	BusyDelay time.Duration `yaml:"busy_delay"`
	// FailureCap is the consecutive-failure budget; at or above it a failed
	// mission is not rescheduled.
	FailureCap int `yaml:"failure_cap"`
	// FailureDecay is the idle window after which the failure counter resets.
	FailureDecay time.Duration `yaml:"failure_decay"`
	// StaleAfter is how long a mission may sit in scheduled before the
	// health monitor marks it timeout.
	StaleAfter time.Duration `yaml:"stale_after"`
	// PacingDelay is the sleep between successive per-language calls.
	PacingDelay time.Duration `yaml:"pacing_delay"`
	// CallerSalt keys the HMAC hashing of caller addresses in snapshots.
	CallerSalt string `yaml:"caller_salt"`
	// DuplicationEnabled gates the duplication primitive; when false the
	// capability probe reports unavailable.
	DuplicationEnabled bool `yaml:"duplication_enabled"`
	// EmergencyStop keeps the daemon up for status queries but refuses
	// admission and execution.
	EmergencyStop bool `yaml:"emergency_stop"`
}

// StoreConfig covers the persistent state database.
type StoreConfig struct {
	// Path is the sqlite database file.
	Path string `yaml:"path"`
}

// LogConfig covers the mission log.
type LogConfig struct {
	// Dir is the mission log directory.
	Dir string `yaml:"dir"`
	// MaxSize is the rotation threshold in bytes.
	MaxSize int64 `yaml:"max_size"`
	// KeepBackups is how many rotated files are retained.
	KeepBackups int `yaml:"keep_backups"`
}

// HealthConfig covers the recurring health sweep.
type HealthConfig struct {
	// Schedule is a 5-field cron expression.
	Schedule string `yaml:"schedule"`
}

// BreakerTimeout derives the circuit breaker hard timeout from the
// configured max execution time, with a 15 minute floor.
func (m MissionConfig) BreakerTimeout() time.Duration {
	t := 2 * m.MaxExecutionTime
	if t < 15*time.Minute {
		t = 15 * time.Minute
	}
	return t
}

// Default returns the shipped configuration rooted under dir
// (typically ~/.missiond).
func Default(dir string) Config {
	return Config{
		Daemon: DaemonConfig{
			Addr: "127.0.0.1:3958",
		},
		Mission: MissionConfig{
			TargetLanguages:    []string{"en-gb", "en-ca", "en-au", "en-us", "en-nz"},
			DailyLimit:         50,
			ScheduleDelay:      45 * time.Second,
			MaxExecutionTime:   2 * time.Minute,
			RetryDelay:         5 * time.Minute,
			BusyDelay:          5 * time.Minute,
			FailureCap:         3,
			FailureDecay:       time.Hour,
			StaleAfter:         2 * time.Hour,
			PacingDelay:        3 * time.Second,
			DuplicationEnabled: true,
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "mission.db"),
		},
		Log: LogConfig{
			Dir:         filepath.Join(dir, "logs"),
			MaxSize:     5 * 1024 * 1024,
			KeepBackups: 5,
		},
		Health: HealthConfig{
			Schedule: "0 * * * *",
		},
	}
}

// DefaultDir returns the missiond data directory under the user home.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".missiond"), nil
}

// Load reads path over the defaults rooted at dir. A missing file yields
// the defaults; a malformed file is an error.
func Load(dir, path string) (Config, error) {
	cfg := Default(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// applyEnv layers environment overrides on top of file values. Only knobs
// that make sense for automation deployments are exposed.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MISSIOND_ADDR"); v != "" {
		cfg.Daemon.Addr = v
	}
	if v := os.Getenv("MISSIOND_TOKEN"); v != "" {
		cfg.Daemon.Token = v
	}
	if v := os.Getenv("MISSIOND_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Mission.DailyLimit = n
		}
	}
	if v := os.Getenv("MISSIOND_EMERGENCY_STOP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Mission.EmergencyStop = b
		}
	}
}

// Validate rejects configurations the controller cannot run with.
func (c Config) Validate() error {
	if len(c.Mission.TargetLanguages) == 0 {
		return fmt.Errorf("config: target_languages must not be empty")
	}
	if c.Mission.DailyLimit < 1 {
		return fmt.Errorf("config: daily_limit must be at least 1")
	}
	if c.Mission.FailureCap < 1 {
		return fmt.Errorf("config: failure_cap must be at least 1")
	}
	if !gronx.IsValid(c.Health.Schedule) {
		return fmt.Errorf("config: invalid health schedule %q", c.Health.Schedule)
	}
	return nil
}
