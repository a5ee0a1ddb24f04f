package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "ESCALATION_THRESHOLD_HOURS", "ESCALATION_SWEEP_MINUTES",
		"ESCALATION_WORKERS", "STATE_ADMIN_SEES_ALL", "ALLOW_STATUS_REOPEN", "TOKEN_TTL_HOURS",
		"DATABASE_MAX_CONNS", "AUTO_MIGRATE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 72*time.Hour, cfg.EscalationThreshold)
	assert.Equal(t, time.Hour, cfg.EscalationSweepInterval)
	assert.Equal(t, 4, cfg.EscalationWorkers)
	assert.False(t, cfg.StateAdminSeesAllLocations)
	assert.True(t, cfg.AllowStatusReopen)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 25, cfg.DatabaseMaxConns)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ESCALATION_THRESHOLD_HOURS", "48")
	t.Setenv("ESCALATION_WORKERS", "0")
	t.Setenv("STATE_ADMIN_SEES_ALL", "true")
	t.Setenv("ALLOW_STATUS_REOPEN", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 48*time.Hour, cfg.EscalationThreshold)
	assert.Equal(t, 1, cfg.EscalationWorkers)
	assert.True(t, cfg.StateAdminSeesAllLocations)
	assert.False(t, cfg.AllowStatusReopen)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/civic")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "a-real-secret")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoad_RejectsNonPositiveThreshold(t *testing.T) {
	t.Setenv("ESCALATION_THRESHOLD_HOURS", "-1")
	_, err := Load()
	assert.Error(t, err)
}
