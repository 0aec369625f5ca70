package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// buildLogger constructs the zap logger handed to the pipeline. It writes
// JSON to stderr so stdout stays clean for the NDJSON stream.
func buildLogger(globals *Globals) *zap.Logger {
	if globals == nil {
		return zap.NewNop()
	}

	level := zapcore.InfoLevel
	switch globals.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}
	if globals.Verbose {
		level = zapcore.DebugLevel
	}
	if globals.Quiet && level < zapcore.ErrorLevel {
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "json"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// agentLogger wraps zap for verbose debug with run/buffer context.
type agentLogger struct {
	sugared    *zap.SugaredLogger
	globals    *Globals
	runID      string
	bufferedFn func() int
}

func newAgentLogger(globals *Globals, runID string, bufferedFn func() int) *agentLogger {
	if globals == nil || !globals.Verbose {
		return &agentLogger{}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	logger, _ := cfg.Build()
	return &agentLogger{
		sugared:    logger.Sugar(),
		globals:    globals,
		runID:      runID,
		bufferedFn: bufferedFn,
	}
}

func (l *agentLogger) Debug(format string, args ...interface{}) {
	if l.sugared == nil {
		return
	}
	buffered := 0
	if l.bufferedFn != nil {
		buffered = l.bufferedFn()
	}
	l.sugared.With("run_id", l.runID, "buffered", buffered).Debugf(format, args...)
}
