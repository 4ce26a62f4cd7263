package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/foldd/internal/config"
)

func sampledLogger(levels map[zapcore.Level]LevelSamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  levels,
	}
	return &Logger{zap: zap.New(newSampledCore(core, cfg)), config: NewDefaultConfig()}, observed
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.ErrorLevel: {Initial: 1, Thereafter: 0},
	})

	for i := 0; i < 50; i++ {
		logger.Error(context.Background(), "boom")
	}
	assert.Equal(t, 50, observed.FilterMessage("boom").Len())
}

func TestNewSampledCore_PerLevelRates(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.DebugLevel: {Initial: 2, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 5, Thereafter: 0},
	})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		logger.Debug(ctx, "debug")
		logger.Info(ctx, "info")
		logger.Warn(ctx, "warn")
		logger.Trace(ctx, "trace")
	}

	assert.Equal(t, 2, observed.FilterMessage("debug").Len())
	assert.Equal(t, 5, observed.FilterMessage("info").Len())
	assert.Equal(t, 20, observed.FilterMessage("warn").Len(), "levels without a rate pass through")
	assert.Equal(t, 20, observed.FilterMessage("trace").Len())
}

func TestNewSampledCore_Thereafter(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 2, Thereafter: 4},
	})

	for i := 0; i < 10; i++ {
		logger.Info(context.Background(), "info")
	}
	// entries 1, 2, then 6 and 10
	assert.Equal(t, 4, observed.FilterMessage("info").Len())
}

func TestLevelFilterCore_With(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: core, accept: func(l zapcore.Level) bool { return l == zapcore.InfoLevel }}

	logger := zap.New(filtered.With([]zapcore.Field{zap.String("k", "v")}))
	logger.Debug("no")
	logger.Info("yes")

	assert.Equal(t, 1, observed.Len())
	assert.Equal(t, "v", observed.All()[0].ContextMap()["k"])
}
