package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, parseLevel("production", "WARN"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("development", ""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("production", ""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("production", "loud"))
}

func TestLoggerFromContext_UsesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	ctx := WithRequestLogger(context.Background(), map[string]interface{}{"request_id": "r-1"})
	LoggerFromContext(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), `"request_id":"r-1"`)

	buf.Reset()
	LoggerFromContext(context.Background()).Info().Msg("plain")
	assert.Contains(t, buf.String(), `"message":"plain"`)
	assert.NotContains(t, buf.String(), "request_id")
}
