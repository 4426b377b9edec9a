package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "payroll.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORS.Origins)
	assert.Equal(t, "0 6 1 * *", cfg.GenerateSchedule)
	assert.Empty(t, cfg.GenerateLineType)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PAYROLL_PORT", "9090")
	t.Setenv("PAYROLL_DB", ":memory:")
	t.Setenv("PAYROLL_LOG_LEVEL", "debug")
	t.Setenv("PAYROLL_LOG_JSON", "true")
	t.Setenv("PAYROLL_CORS_ORIGINS", "https://erp.example.com")
	t.Setenv("PAYROLL_GENERATE_LINE_TYPE", "normal")
	t.Setenv("PAYROLL_GENERATE_SCHEDULE", "@monthly")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, []string{"https://erp.example.com"}, cfg.CORS.Origins)
	assert.Equal(t, "normal", cfg.GenerateLineType)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port not a number", map[string]string{"PAYROLL_PORT": "http"}},
		{"port out of range", map[string]string{"PAYROLL_PORT": "70000"}},
		{"bad schedule", map[string]string{"PAYROLL_GENERATE_LINE_TYPE": "normal", "PAYROLL_GENERATE_SCHEDULE": "every day"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
