package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "manabi", cfg.JWTIssuer)
	assert.Equal(t, "manabi", cfg.JWTAudience)
	assert.Equal(t, "http://127.0.0.1:8081", cfg.SearchBaseURL)
	assert.Equal(t, "http://127.0.0.1:8082", cfg.RAGBaseURL)
	assert.Equal(t, TeacherScopeAll, cfg.TeacherDefaultScope)
	assert.Equal(t, 15*time.Minute, cfg.SignedLinkTTL)
	assert.Equal(t, 1200, cfg.AnswerBudget)
	assert.Equal(t, int64(1<<20), cfg.MaxRequestBodyBytes)
	assert.Equal(t, 5.0, cfg.SearchRateLimit)
	assert.Equal(t, 10, cfg.SearchRateBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MANABI_PORT", "9999")
	t.Setenv("MANABI_RETRIEVAL_TIMEOUT", "2s")
	t.Setenv("MANABI_TEACHER_DEFAULT_SCOPE", "none")
	t.Setenv("MANABI_SIGNED_LINK_TTL", "5m")
	t.Setenv("MANABI_SEARCH_RATE_LIMIT", "0.5")
	t.Setenv("SEARCH_SERVICE_BASE_URL", "http://search.internal:80")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.RetrievalTimeout)
	assert.Equal(t, TeacherScopeNone, cfg.TeacherDefaultScope)
	assert.Equal(t, 5*time.Minute, cfg.SignedLinkTTL)
	assert.Equal(t, 0.5, cfg.SearchRateLimit)
	assert.Equal(t, "http://search.internal:80", cfg.SearchBaseURL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MANABI_PORT", "not-a-number")
	t.Setenv("MANABI_READ_TIMEOUT", "soon")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.False(t, cfg.OTELInsecure)
}

func TestLoadRejectsBadTeacherScope(t *testing.T) {
	t.Setenv("MANABI_TEACHER_DEFAULT_SCOPE", "everything")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MANABI_TEACHER_DEFAULT_SCOPE")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DatabaseURL:         "postgres://localhost/x",
			SearchBaseURL:       "http://localhost:8081",
			TeacherDefaultScope: TeacherScopeAll,
			SignedLinkTTL:       time.Minute,
			RetrievalTimeout:    time.Second,
			MaxRequestBodyBytes: 1024,
			AnswerBudget:        100,
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing search url", func(c *Config) { c.SearchBaseURL = "" }, "SEARCH_SERVICE_BASE_URL"},
		{"zero link ttl", func(c *Config) { c.SignedLinkTTL = 0 }, "MANABI_SIGNED_LINK_TTL"},
		{"negative retrieval timeout", func(c *Config) { c.RetrievalTimeout = -time.Second }, "MANABI_RETRIEVAL_TIMEOUT"},
		{"zero body limit", func(c *Config) { c.MaxRequestBodyBytes = 0 }, "MANABI_MAX_REQUEST_BODY_BYTES"},
		{"zero answer budget", func(c *Config) { c.AnswerBudget = 0 }, "MANABI_ANSWER_SOURCE_BUDGET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
