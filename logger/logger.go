// Package logger - zap logger writing info to stdout and warnings to stderr.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger.
//
// Debug and info entries go to stdout, warnings and above to stderr. Debug
// mode enables debug entries and the development encoder config.
//
// Arguments:
//   - debug: Enables debug level.
//
// Returns:
//   - *zap.Logger: The logger.
func New(debug bool) *zap.Logger {
	return NewWithWriters(debug, os.Stdout, os.Stderr)
}

// NewWithWriters builds the logger over arbitrary writers.
func NewWithWriters(debug bool, stdout, stderr io.Writer) *zap.Logger {
	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	stdoutSyncer := zapcore.Lock(zapcore.AddSync(stdout))
	stderrSyncer := zapcore.Lock(zapcore.AddSync(stderr))

	encoderConfig := zap.NewProductionEncoderConfig()
	outLevel := zapcore.LevelEnabler(infoLevel)
	if debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		outLevel = debugInfoLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stdoutSyncer, outLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), stderrSyncer, warnErrorFatalLevel),
	)
	return zap.New(core)
}
