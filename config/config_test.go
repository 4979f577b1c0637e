package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/reconcile"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: no file in the search path
	t.Chdir(t.TempDir())

	cfg, err := config.Load(config.New(), "")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "Europe/Paris", cfg.Zone)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, reconcile.DefaultTolerances(), cfg.Tolerances)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
store:
  backend: memory
zone: America/New_York
scheduler:
  interval: 1h
tolerances:
  late_arrival_grace: 10
`)
	t.Setenv("ATTENDANCE_SERVER_PORT", "9090")

	cfg, err := config.Load(config.New(), path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port, "env beats file")
	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 10, cfg.Tolerances.LateArrivalGrace)
	assert.Equal(t, 20, cfg.Tolerances.LateArrivalCritical, "unset keys keep defaults")

	clock, err := cfg.Clock()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", clock.Location().String())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown zone":       "zone: Mars/Olympus\n",
		"local zone":         "zone: Local\n",
		"bad backend":        "store:\n  backend: postgres\n",
		"bad format":         "log:\n  format: xml\n",
		"tolerance ordering": "tolerances:\n  late_arrival_critical: 2\n",
		"zero concurrency":   "concurrency: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(config.New(), writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
