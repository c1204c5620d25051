package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresLevel(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("debug"))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitWithOptions(Options{Level: "warn", Development: true}))
	require.False(t, Logger().Core().Enabled(zap.InfoLevel))
}

func TestInitFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("loud"))
	require.True(t, Logger().Core().Enabled(zap.InfoLevel))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel))
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	WithModule("membership").Info("joined", zap.String("contract_id", "c-1"))
	Warn("plain")

	entries := recorded.All()
	require.Len(t, entries, 2)
	require.Equal(t, "membership", entries[0].ContextMap()["module"])
	require.Equal(t, "c-1", entries[0].ContextMap()["contract_id"])
	require.Equal(t, "plain", entries[1].Message)
}
