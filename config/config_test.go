package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:80", cfg.Addr)
	assert.Equal(t, "qforms.sqlite", cfg.DBUrl)
	assert.Equal(t, "s3cret", cfg.TokenSecret)
	assert.Equal(t, 120*time.Second, cfg.TokenTTL)
	assert.Equal(t, "admin", cfg.AdminUser)
	assert.False(t, cfg.Strict)
	assert.Equal(t, "http://localhost:80", cfg.Url())
}

func TestParseFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("DATABASE_URL", "env.sqlite")
	t.Setenv("STRICT", "true")

	cfg, err := Parse([]string{"-token-secret", "from-flag", "-port", "8080", "-token-ttl", "5", "-strict=false"})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.TokenSecret)
	assert.Equal(t, "env.sqlite", cfg.DBUrl)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.TokenTTL)
	assert.False(t, cfg.Strict)
}

func TestParseMissingSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "")

	_, err := Parse(nil)
	assert.EqualError(t, err, "missing parameter -token-secret")
}
