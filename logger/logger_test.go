package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, zerolog.WarnLevel, New(&buf, "WARN", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(&buf, "loud", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(&buf, "", false).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, New(&buf, "error", true).GetLevel())
	assert.Equal(t, zerolog.TraceLevel, New(&buf, "trace", true).GetLevel())
}

func TestNewWrites(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", false)

	log.Debug().Msg("hidden")
	log.Info().Str("file", "sales.csv").Msg("loaded")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "loaded")
	assert.Contains(t, out, "file=sales.csv")
}
