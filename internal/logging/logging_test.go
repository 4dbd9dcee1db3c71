package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	lvl, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewHonoursLevel(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := New("error", format)
		require.NoError(t, err, format)
		assert.False(t, logger.Core().Enabled(zapcore.WarnLevel), format)
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel), format)
	}
	_, err := New("nope", "console")
	assert.Error(t, err)
}
