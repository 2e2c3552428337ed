package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Output: &buf})

	l.Info().Msg("dropped")
	l.Warn().Str("booking_id", "b1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "b1", entry["booking_id"])
	assert.Equal(t, "mindease", entry["service"])
}

func TestComponentUsesGlobal(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "debug", Output: &buf})

	c := Component("outbox")
	c.Debug().Msg("tick")
	log.Debug().Msg("global")

	assert.Contains(t, buf.String(), `"component":"outbox"`)
	assert.Contains(t, buf.String(), `"message":"global"`)
}
