package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGlobalLoggerSafeBeforeInit(t *testing.T) {
	logger = nil
	assert.NotPanics(t, func() {
		Debug("ignored", "k", "v")
		Info("ignored")
		Warn("ignored")
		Error("ignored")
		Close()
	})
}

func TestInitAndLog(t *testing.T) {
	Init(true)
	defer Close()

	assert.NotPanics(t, func() {
		Debug("debug message", "session", "s-1")
		Warn("warn message", "count", 3)
	})
}

func TestContextLogger(t *testing.T) {
	ctx, logs := TestContext()

	FromContext(ctx).Info("captured")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "captured", logs.All()[0].Message)

	// fields added via With survive on child contexts
	child := With(ctx, zap.String("session", "s-1"))
	FromContext(child).Info("tagged")
	entries := logs.FilterMessage("tagged").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "s-1", entries[0].ContextMap()["session"])
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	l := FromContext(context.Background())
	assert.NotNil(t, l)
}
