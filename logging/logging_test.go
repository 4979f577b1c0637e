package logging_test

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"DEBUG":    zerolog.DebugLevel,
		" info ":   zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Options{Level: "info", Format: "json", Service: "attendance", Writer: &buf})

	log.Debug().Msg("dropped")
	log.Info().Str("employee_id", "emp-1").Msg("day reconciled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "day reconciled", entry["message"])
	assert.Equal(t, "attendance", entry["service"])
	assert.Equal(t, "emp-1", entry["employee_id"])
	assert.NotContains(t, buf.String(), "dropped")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Options{Level: "debug", Format: "console", Writer: &buf})

	log.Warn().Msg("clock skew")

	assert.Contains(t, buf.String(), "clock skew")
	assert.Contains(t, buf.String(), "WRN")
}

func TestGet_ReturnsSameRoot(t *testing.T) {
	assert.Same(t, logging.Get(), logging.Get())
	assert.Equal(t, logging.Get().GetLevel(), logging.Named("scheduler").GetLevel())
}
