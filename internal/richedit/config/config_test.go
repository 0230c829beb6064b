package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEB_URL", "https://editor.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "editor.example.com", cfg.WebURL.Host)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ":2112", cfg.MetricsAddr)
	assert.Equal(t, 5*1024*1024, cfg.ImageMaxBytes)
	assert.Equal(t, ResolverDataURI, cfg.ImageResolver)
	assert.Equal(t, 60, cfg.BlobTTLMinutes)
	assert.Equal(t, 120, cfg.SessionTTLMinutes)
	assert.Equal(t, 1000, cfg.MaxSessions)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.False(t, cfg.PasteAlwaysReparse)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEB_URL", "http://localhost:8080")
	t.Setenv("IMAGE_RESOLVER", "Blob")
	t.Setenv("IMAGE_MAX_DIMENSION", "1024")
	t.Setenv("HISTORY_LIMIT", "0")
	t.Setenv("PASTE_ALWAYS_REPARSE", "true")
	t.Setenv("MAX_SESSIONS", "not a number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ResolverBlob, cfg.ImageResolver)
	assert.Equal(t, 1024, cfg.ImageMaxDimension)
	assert.Equal(t, 0, cfg.HistoryLimit)
	assert.True(t, cfg.PasteAlwaysReparse)
	assert.Equal(t, 1000, cfg.MaxSessions)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("WEB_URL", "")
	_, err := Load()
	assert.ErrorIs(t, err, ErrWebURLRequired)

	t.Setenv("WEB_URL", "http://localhost")
	t.Setenv("IMAGE_RESOLVER", "cloudinary")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("IMAGE_RESOLVER", "storage")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("LOCAL_STORAGE_PATH", t.TempDir())
	_, err = Load()
	assert.NoError(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "s****t", mask("secret"))
	assert.Equal(t, "**", mask("ab"))
	assert.True(t, isSecret("AWSSecretKey"))
	assert.False(t, isSecret("AWSAccessKey"))
}

func TestGetURLEnv(t *testing.T) {
	t.Setenv("TEST_URL", " https://editor.example.com/base/?x=1 ")
	u, err := GetURLEnv("TEST_URL")
	require.NoError(t, err)
	assert.Equal(t, "https://editor.example.com/base", u.String())

	for _, raw := range []string{"", "editor.example.com", "ftp://editor.example.com", "http://%zz"} {
		t.Setenv("TEST_URL", raw)
		_, err := GetURLEnv("TEST_URL")
		assert.Error(t, err, raw)
	}
}

func TestLoadRejectsRelativeWebURL(t *testing.T) {
	t.Setenv("WEB_URL", "/editor")
	_, err := Load()
	assert.Error(t, err)
}
