package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cofind/internal/common"
	"github.com/dmitrijs2005/cofind/internal/retryx"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "cofind.local", c.EmailDomain)
	assert.Equal(t, "cofind.db", c.LocalDBPath)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, common.DefaultArtifactPrefixes, c.ArtifactPrefixes)
	assert.Equal(t, retryx.DefaultPolicy(), c.RetryPolicy())
}

func TestLoadDefaults_PrefixesAreCopied(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.ArtifactPrefixes[0] = "changed"

	assert.NotEqual(t, "changed", common.DefaultArtifactPrefixes[0])
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "cofind.local", cfg.EmailDomain)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin", "-i", "7"}

	t.Setenv("COFIND_EMAIL_DOMAIN", "example.org")
	t.Setenv("COFIND_RETRY_MAX", "5")
	t.Setenv("COFIND_RETRY_BASE_DELAY", "250ms")
	t.Setenv("COFIND_ARTIFACT_PREFIXES", "a_,b_")
	t.Setenv("COFIND_ONLINE_CHECK_INTERVAL", "1m")

	cfg := LoadConfig()

	assert.Equal(t, "example.org", cfg.EmailDomain)
	assert.Equal(t, 5, cfg.RetryPolicy().MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryPolicy().BaseDelay)
	assert.Equal(t, []string{"a_", "b_"}, cfg.ArtifactPrefixes)
	assert.Equal(t, 7*time.Second, cfg.OnlineCheckInterval, "flags win over env")
}

func TestParseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("COFIND_RETRY_TIMEOUT", "soon")

	cfg := &Config{}
	require.Panics(t, func() { parseEnv(cfg) })
}
