package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Cruise Price Tracker", cfg.App.Name)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, DefaultTargetURL, cfg.Crawler.TargetURL)
	assert.Equal(t, 120*time.Second, cfg.Crawler.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Alerting.Timeout)
	assert.Equal(t, "sendgrid", cfg.Alerting.Provider)
	assert.Equal(t, cfg.App.Name, cfg.Alerting.FromName)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("TARGET_URL", "https://example.com/booking")
	t.Setenv("CRAWL_INTERVAL_MINUTES", "30")
	t.Setenv("REQUEST_TIMEOUT_MS", "45000")
	t.Setenv("SENDGRID_API_KEY", "sg-key")
	t.Setenv("ENABLE_SCHEDULER", "false")
	t.Setenv("SCHEDULER_TIMEZONE", "America/New_York")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/booking", cfg.Crawler.TargetURL)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 45*time.Second, cfg.Crawler.Timeout)
	assert.Equal(t, "sg-key", cfg.Alerting.SendGrid.APIKey)
	assert.False(t, cfg.Scheduler.Enabled)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Setenv("CRUISEWATCH_ALERTING_SMTP_HOST", "smtp.example.com")
	t.Setenv("CRUISEWATCH_HTTP_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", cfg.Alerting.SMTP.Host)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  name: Test Tracker
  timezone: Europe/London
scheduler:
  interval: 10m
alerting:
  provider: smtp
  smtp:
    host: localhost
    port: 2525
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Tracker", cfg.App.Name)
	assert.Equal(t, "Test Tracker", cfg.Alerting.FromName)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "smtp", cfg.Alerting.Provider)
	assert.Equal(t, 2525, cfg.Alerting.SMTP.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"interval too short": {"CRUISEWATCH_SCHEDULER_INTERVAL": "1m"},
		"interval too long":  {"CRAWL_INTERVAL_MINUTES": "1441"},
		"unknown timezone":   {"CRUISEWATCH_APP_TIMEZONE": "Mars/Olympus"},
		"unknown provider":   {"CRUISEWATCH_ALERTING_PROVIDER": "pigeon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}
