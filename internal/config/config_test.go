package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "https://www.bitrefill.com", cfg.Scraper.BaseURL)
	require.Equal(t, "US", cfg.Scraper.Country)
	require.Equal(t, "browserapi", cfg.Fetcher.Channel)
	require.Equal(t, 100, cfg.Scraper.MaxProducts)
	require.Equal(t, "local", cfg.Artifact.Provider)
	require.Equal(t, "bitrefill_esims.json", cfg.Artifact.Path)
	require.Equal(t, "memory", cfg.History.Provider)
	require.True(t, cfg.Logging.Development)

	require.Equal(t, time.Second, cfg.Delay())
	require.Equal(t, 10*time.Minute, cfg.RunTimeout())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9090
scraper:
  country: DE
  delay_seconds: 2
fetcher:
  channel: direct
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "DE", cfg.Scraper.Country)
	require.Equal(t, 2*time.Second, cfg.Delay())
	require.Equal(t, "direct", cfg.Fetcher.Channel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Fetcher.Channel = "carrier-pigeon"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())
	cfg.Auth.APIKey = "secret"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Artifact.Provider = "gcs"
	require.Error(t, cfg.Validate())
	cfg.Artifact.GCSBucket = "bucket"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.History.Provider = "postgres"
	require.Error(t, cfg.Validate())
	cfg.History.DSN = "postgres://localhost/esim"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Publisher.Provider = "pubsub"
	require.Error(t, cfg.Validate())
	cfg.Publisher.ProjectID = "proj"
	cfg.Publisher.Topic = "runs"
	require.NoError(t, cfg.Validate())
}
