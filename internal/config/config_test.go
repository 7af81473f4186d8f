package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 80*time.Millisecond, cfg.RetryMaxDelay)
	assert.False(t, cfg.Debug)
}

func TestLoad_ReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "Europe/Zurich")
	t.Setenv("DATABASE_URL", "postgres://test/db")
	t.Setenv("RETRY_MAX_ATTEMPTS", "2")

	cfg := Load()
	assert.Equal(t, "Europe/Zurich", cfg.Timezone)
	assert.Equal(t, "postgres://test/db", cfg.DatabaseURL)
	assert.Equal(t, 2, cfg.RetryMaxAttempts)
}

func TestValidate_RejectsEmptyDSN(t *testing.T) {
	cfg := &Config{Timezone: "UTC"}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownTimezone(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://x", Timezone: "Not/AZone"}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://x", Timezone: "UTC"}
	assert.NoError(t, cfg.Validate())
}

func TestSettings_CarriesTimezoneAndDSN(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://x", Timezone: "UTC", RetryMaxAttempts: 3, RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Second}
	settings := cfg.Settings()
	assert.Equal(t, "UTC", settings.Timezone)
	assert.Equal(t, "postgres://x", settings.DSN)
	require.NotNil(t, settings.SessionProviderFactory)
}
