package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, AuthModeFirebase, cfg.Auth.Mode)
	assert.Equal(t, 10, cfg.Feed.BatchSize)
	assert.Equal(t, 2, cfg.Feed.LowWaterMark)
	assert.Equal(t, 10*time.Second, cfg.Feed.ReplenishTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Feed.SessionIdleTTL)
	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
}

func TestLoad_FeedOverrides(t *testing.T) {
	t.Setenv("FEED_BATCH_SIZE", "25")
	t.Setenv("FEED_REPLENISH_TIMEOUT", "3s")
	t.Setenv("FEED_LOW_WATER_MARK", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Feed.BatchSize)
	assert.Equal(t, 3*time.Second, cfg.Feed.ReplenishTimeout)
	assert.Equal(t, 2, cfg.Feed.LowWaterMark)
}

func TestLoad_RejectsUnknownStoreBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestLoad_JWTModeRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_MODE", AuthModeJWT)

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "sq", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=sq sslmode=disable", db.DatabaseDSN())
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://app.sidequest.dev, http://localhost:3000,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.sidequest.dev", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoad_DatabasePoolAndSampling(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "40")
	t.Setenv("DB_CONN_MAX_LIFETIME", "1m")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, time.Minute, cfg.Database.ConnMaxLifetime)
	assert.InDelta(t, 0.25, cfg.OTEL.SampleRatio, 1e-9)
}

func TestLoad_RejectsSampleRatioOutOfRange(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATIO", "1.5")

	_, err := Load()
	assert.ErrorContains(t, err, "OTEL_SAMPLE_RATIO")
}
