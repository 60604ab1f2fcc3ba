package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log := New()
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestNewFromConfig(t *testing.T) {
	t.Run("json at warn level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := NewFromConfig(buf, "WARN", "json")
		require.NoError(t, err)

		log.Info().Msg("hidden")
		log.Warn().Str("file", "jan.csv").Msg("shown")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "shown", entry["message"])
		assert.Equal(t, "jan.csv", entry["file"])
		assert.Equal(t, "warn", entry["level"])
	})

	t.Run("console", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := NewFromConfig(buf, "debug", "console")
		require.NoError(t, err)
		log.Debug().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
	})

	t.Run("empty level means info", func(t *testing.T) {
		log, err := NewFromConfig(&bytes.Buffer{}, "", "json")
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewFromConfig(&bytes.Buffer{}, "loud", "json")
		assert.Error(t, err)
		_, err = NewFromConfig(&bytes.Buffer{}, "info", "xml")
		assert.Error(t, err)
	})
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	assert.NotNil(t, ctx.Value(LoggerKey))
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	assert.NotZero(t, buf.Len())
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"user_id": "123",
		"action":  "import",
	})
	log.Info().Msg("test message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "123", entry["user_id"])
	assert.Equal(t, "import", entry["action"])
}
