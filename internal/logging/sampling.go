package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core so that each level listed in cfg.Levels is sampled
// at its own rate. Other levels, and Error and above, pass through untouched.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	sampled := make(map[zapcore.Level]bool, len(cfg.Levels))
	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)
	for lvl, rate := range cfg.Levels {
		if lvl < zapcore.DebugLevel || lvl >= zapcore.ErrorLevel {
			continue
		}
		sampled[lvl] = true
		only := lvl
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelFilterCore{Core: core, accept: func(l zapcore.Level) bool { return l == only }},
			cfg.Tick.Duration(),
			rate.Initial,
			rate.Thereafter,
		))
	}
	cores = append(cores, &levelFilterCore{Core: core, accept: func(l zapcore.Level) bool { return !sampled[l] }})

	return zapcore.NewTee(cores...)
}

// levelFilterCore passes only the levels accept allows.
type levelFilterCore struct {
	zapcore.Core
	accept func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.accept(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:   c.Core.With(fields),
		accept: c.accept,
	}
}
