/*
config.go - Runtime configuration

PURPOSE:
  One Config struct for the server and the CLI. Values resolve in this
  order (last wins): defaults, attendance.yaml, ATTENDANCE_* environment
  variables, command-line flags bound by cmd/server.

KEYS:
  server.port            HTTP port (8080)
  server.cors_origins    allowed origins (["*"])
  store.backend          sqlite | memory
  store.path             SQLite file, ":memory:" for a throwaway database
  zone                   IANA zone of the civil clock (Europe/Paris)
  log.level / log.format zerolog level, console | json
  scheduler.enabled      nightly recompute on/off
  scheduler.interval     tick period (24h)
  scheduler.lookback     days recomputed per tick, ending yesterday
  concurrency            worker bound for range recompute and team reports
  tolerances.*           reconcile.Tolerances, snake_case keys

ENVIRONMENT:
  Nested keys use "_" in place of ".", e.g. ATTENDANCE_SERVER_PORT=9090,
  ATTENDANCE_TOLERANCES_LATE_ARRIVAL_GRACE=10.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/timekeeping"
)

// Backends
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ATTENDANCE"

type Server struct {
	Port        int      `mapstructure:"port" validate:"gte=1,lte=65535"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type Store struct {
	Backend string `mapstructure:"backend" validate:"oneof=sqlite memory"`
	Path    string `mapstructure:"path" validate:"required_if=Backend sqlite"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type Scheduler struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Lookback int           `mapstructure:"lookback" validate:"gte=1,lte=31"`
}

// Config is the resolved configuration.
type Config struct {
	Server      Server               `mapstructure:"server"`
	Store       Store                `mapstructure:"store"`
	Zone        string               `mapstructure:"zone" validate:"required"`
	Log         Log                  `mapstructure:"log"`
	Scheduler   Scheduler            `mapstructure:"scheduler"`
	Concurrency int                  `mapstructure:"concurrency" validate:"gte=1"`
	Tolerances  reconcile.Tolerances `mapstructure:"tolerances"`
}

// Clock builds the civil clock for the configured zone.
func (c Config) Clock() (timekeeping.Clock, error) {
	return timekeeping.NewClock(c.Zone)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, the zone and the tolerance ordering.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Clock(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Tolerances.Validate()
}

// New returns a viper instance with defaults and env overrides wired.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers every key so environment overrides resolve on
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", "attendance.db")
	v.SetDefault("zone", "Europe/Paris")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 24*time.Hour)
	v.SetDefault("scheduler.lookback", 1)
	v.SetDefault("concurrency", 8)

	t := reconcile.DefaultTolerances()
	for key, val := range map[string]int{
		"late_arrival_grace":        t.LateArrivalGrace,
		"late_arrival_critical":     t.LateArrivalCritical,
		"arrival_late_ceiling":      t.ArrivalLateCeiling,
		"arrival_early_ceiling":     t.ArrivalEarlyCeiling,
		"early_departure_grace":     t.EarlyDepartureGrace,
		"early_departure_critical":  t.EarlyDepartureCritical,
		"departure_early_ceiling":   t.DepartureEarlyCeiling,
		"overtime_grace":            t.OvertimeGrace,
		"overtime_approval_ceiling": t.OvertimeApprovalCeiling,
		"departure_late_ceiling":    t.DepartureLateCeiling,
		"daily_overtime_threshold":  t.DailyOvertimeThreshold,
		"break_grace":               t.BreakGrace,
		"excessive_break_critical":  t.ExcessiveBreakCritical,
		"break_shift_ceiling":       t.BreakShiftCeiling,
	} {
		v.SetDefault("tolerances."+key, val)
	}
}

// Load reads the config file (if any), then unmarshals and validates. An
// empty file searches attendance.yaml in the working directory and
// /etc/attendance; a missing file is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("attendance")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/attendance")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
