package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Map.AlertDelay)
	assert.Equal(t, 3*time.Second, cfg.Map.RecenterDelay)
	assert.Equal(t, 50.0, cfg.Map.RecenterThreshold)
	assert.Equal(t, 1000.0, cfg.Map.RegionMeters)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "myplaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
logging:
  level: debug
store:
  dsn: sqlite:places.db
map:
  alert_delay: 250ms
geocoder:
  url: http://nominatim.local
`), 0o600))
	t.Setenv("ROUTER_URL", "http://osrm.local")
	t.Setenv("RECENTER_DELAY", "1s")
	t.Setenv("ALLOW_ORIGINS", "http://a, http://b")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "sqlite:places.db", cfg.Store.DSN)
	assert.Equal(t, 250*time.Millisecond, cfg.Map.AlertDelay)
	assert.Equal(t, time.Second, cfg.Map.RecenterDelay)
	assert.Equal(t, "http://nominatim.local", cfg.Geocoder.URL)
	assert.Equal(t, "http://osrm.local", cfg.Router.URL)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.AllowOrigins)
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEOCODER_USER_AGENT=dotenv-agent\n"), 0o600))
	t.Setenv("GEOCODER_USER_AGENT", "")
	os.Unsetenv("GEOCODER_USER_AGENT")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-agent", cfg.Geocoder.UserAgent)
}

func TestBadEnvValue(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RATE_RPS", "fast")
	_, err := Load("")
	assert.ErrorContains(t, err, "RATE_RPS")
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.Store.DSN = "postgres://user:secret@db/places"
	r := cfg.Redacted()
	assert.Equal(t, true, r["hasDatabaseUrl"])
	for k, v := range r {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "secret", k)
		}
	}
}

func TestWebhookTargets(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "myplaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
webhooks:
  max_attempts: 3
  targets:
    - url: http://hooks.local/a
      secret: s3cr3t
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Webhooks.Targets, 1)
	assert.Equal(t, "s3cr3t", cfg.Webhooks.Targets[0].Secret)
	assert.Equal(t, 3, cfg.Webhooks.MaxAttempts)

	t.Setenv("WEBHOOK_URL", "http://hooks.local/b")
	t.Setenv("WEBHOOK_SECRET", "")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "5")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []WebhookTarget{{URL: "http://hooks.local/b"}}, cfg.Webhooks.Targets)
	assert.Equal(t, 5, cfg.Webhooks.MaxAttempts)
	assert.Equal(t, 1, cfg.Redacted()["webhookTargets"])
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
