package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel is a custom level below Debug for per-keystroke detail.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name. "trace" and "warning" are accepted in
// addition to zap's own names.
func LevelFromString(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return TraceLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// LevelName returns the configuration name of level.
func LevelName(level zapcore.Level) string {
	if level == TraceLevel {
		return "trace"
	}
	return level.String()
}
