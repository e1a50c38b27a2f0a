package serv

import (
	"os"

	"github.com/dosco/docorm/serv/internal/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates the logger described by the log settings of c.
// Logs go to stderr so command output on stdout stays clean.
func NewLogger(c *Config) *zap.Logger {
	return util.NewLoggerTo(os.Stderr, c.ShouldUseJSONLogs(), util.ParseLevel(c.LogLevel))
}

// NewConsoleLogger creates the logger used before a config is loaded
func NewConsoleLogger() *zap.Logger {
	return util.NewLoggerTo(os.Stderr, false, zapcore.InfoLevel)
}
