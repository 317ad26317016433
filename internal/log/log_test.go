package log

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gotest.tools/v3/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{in: "debug", want: LevelDebug},
		{in: " ERROR ", want: LevelError},
		{in: "info", want: LevelInfo},
		{in: "verbose", want: LevelInfo},
		{in: "", want: LevelInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, ParseLevel(tc.in), tc.want, "input %q", tc.in)
	}
}

func TestErrorPrependsErrField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer Replace(zap.New(core))()

	Error("fetch failed", errors.New("boom"), "kind", "event")
	Info("done", "count", 3)

	entries := logs.AllUntimed()
	assert.Equal(t, len(entries), 2)

	first := entries[0]
	assert.Equal(t, first.Level, zapcore.ErrorLevel)
	assert.Equal(t, first.Message, "fetch failed")
	fields := first.ContextMap()
	assert.Equal(t, fields["err"], "boom")
	assert.Equal(t, fields["kind"], "event")

	assert.Equal(t, entries[1].ContextMap()["count"], int64(3))
}

func TestSetLevelFiltersDefaultLogger(t *testing.T) {
	defer SetLevel(LevelInfo)

	SetLevel(LevelError)
	assert.Assert(t, !level.Enabled(zapcore.InfoLevel))
	assert.Assert(t, level.Enabled(zapcore.ErrorLevel))

	SetLevel(LevelDebug)
	assert.Assert(t, level.Enabled(zapcore.DebugLevel))
}
