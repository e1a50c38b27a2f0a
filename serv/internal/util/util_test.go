package util

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetKeyValue(t *testing.T) {
	vi := viper.New()

	assert.True(t, SetKeyValue(vi, "CONNECTIONS__DEFAULT__URI", "mongodb://db:27017"))
	assert.True(t, SetKeyValue(vi, "LOG_LEVEL", "debug"))
	assert.False(t, SetKeyValue(vi, "__BROKEN", "x"))

	assert.Equal(t, "mongodb://db:27017", vi.GetString("connections.default.uri"))
	assert.Equal(t, "debug", vi.GetString("log_level"))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, true, zapcore.InfoLevel)

	log.Debug("hidden")
	log.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
}
