package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.WarnLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestRaise(t *testing.T) {
	assert.Equal(t, "warn", Raise("warn", 0))
	assert.Equal(t, "info", Raise("warn", 1))
	assert.Equal(t, "debug", Raise("warn", 2))
	assert.Equal(t, "debug", Raise("warn", 5))
	assert.Equal(t, "loud", Raise("loud", 1))
}

func TestNew(t *testing.T) {
	for _, json := range []bool{false, true} {
		logger, err := New("debug", json)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	}
	_, err := New("bogus", false)
	assert.Error(t, err)
}
