package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_ValidLevelsAndFormats(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
		want   zapcore.Level
	}{
		{"debug json", "debug", "json", zapcore.DebugLevel},
		{"info json", "info", "json", zapcore.InfoLevel},
		{"warn console", "warn", "console", zapcore.WarnLevel},
		{"error console", "error", "console", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.level, tt.format)

			require.NoError(t, err)
			require.NotNil(t, log)
			assert.True(t, log.Core().Enabled(tt.want))
			log.Info("test log message")
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	log, err := New("verbose", "json")

	assert.Error(t, err)
	assert.Nil(t, log)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNew_InvalidFormat(t *testing.T) {
	log, err := New("info", "xml")

	assert.Error(t, err)
	assert.Nil(t, log)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestNew_LevelFiltersBelow(t *testing.T) {
	log, err := New("warn", "json")
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestComponent_NilLogger(t *testing.T) {
	log := Component(nil, "bot")

	require.NotNil(t, log)
	log.Info("discarded")
}
