package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/annsync/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validConfig = `
data_dir = "/var/lib/annsync"
failure_threshold = 25

[blob]
endpoint = "localhost:9000"
bucket = "disclosures"
use_ssl = false

[[sources]]
name = "nse"
feed_url = "https://example.com/nse/feed"
timezone = "Asia/Kolkata"
backfill_days = 30
interval = "10m"
workers = 8
enabled = true

[[sources]]
name = "bse"
feed_url = "https://example.com/bse/feed"
enabled = false
`

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/annsync", cfg.DataDir)
	assert.Equal(t, 25, cfg.FailureThreshold)
	assert.Equal(t, "localhost:9000", cfg.Blob.Endpoint)
	assert.Equal(t, "disclosures", cfg.Blob.Bucket)
	require.Len(t, cfg.Sources, 2)
	assert.True(t, cfg.Sources[0].Enabled)
	assert.False(t, cfg.Sources[1].Enabled)
}

func TestLoad_CredentialsFromEnvironment(t *testing.T) {
	t.Setenv(EnvBlobAccessKey, "test-access")
	t.Setenv(EnvBlobSecretKey, "test-secret")
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-access", cfg.Blob.AccessKey)
	assert.Equal(t, "test-secret", cfg.Blob.SecretKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_NoSources(t *testing.T) {
	path := writeConfig(t, `data_dir = "/tmp"`)
	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoad_DuplicateSource(t *testing.T) {
	path := writeConfig(t, `
[[sources]]
name = "nse"
feed_url = "https://example.com/feed"

[[sources]]
name = "nse"
feed_url = "https://example.com/feed"
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoad_BadInterval(t *testing.T) {
	path := writeConfig(t, `
[[sources]]
name = "nse"
feed_url = "https://example.com/feed"
interval = "every so often"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad interval")
}

func TestLoad_BadTimezone(t *testing.T) {
	path := writeConfig(t, `
[[sources]]
name = "nse"
feed_url = "https://example.com/feed"
timezone = "Mars/Olympus_Mons"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad timezone")
}

func TestConfig_DomainSources_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[[sources]]
name = "nse"
feed_url = "https://example.com/feed"
enabled = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	sources := cfg.DomainSources()
	require.Len(t, sources, 1)
	assert.Equal(t, domain.DefaultTimezone, sources[0].Timezone)
	assert.Equal(t, domain.DefaultBackfillDays, sources[0].BackfillDays)
	assert.Equal(t, domain.DefaultInterval, sources[0].Interval)
	assert.Equal(t, domain.DefaultWorkers, sources[0].Workers)
}

func TestConfig_DomainSources_ExplicitValues(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	sources := cfg.DomainSources()
	require.Len(t, sources, 2)
	assert.Equal(t, 10*time.Minute, sources[0].Interval)
	assert.Equal(t, 30, sources[0].BackfillDays)
	assert.Equal(t, 8, sources[0].Workers)
}
