package app

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"engagement-service/internal/config"
	"engagement-service/internal/logging"
)

func shippedPolicy(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs", "engagement.yaml")
}

func memoryConfig(t *testing.T) config.Config {
	var cfg config.Config
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.ConversationBackend = config.BackendMemory
	cfg.Notification.QueueSize = 10
	cfg.Notification.MaxWorkers = 1
	cfg.Notification.Channels = []string{"websocket"}
	cfg.Engagement.ConfigPath = shippedPolicy(t)
	return cfg
}

func TestNew_MemoryBackend(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Service)
	require.NotNil(t, a.Hub)

	report, err := a.Service.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Alerts)
}

func TestNew_MemoryBackendSeeded(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.SeedPath = filepath.Join(filepath.Dir(shippedPolicy(t)), "seed.example.yaml")
	a, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Service.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Alerts, 1)
	require.Equal(t, "deal-ana", report.Alerts[0].DealID)
}

func TestNew_MemoryBackendBadSeed(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Storage.SeedPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg, logging.Discard())
	require.ErrorContains(t, err, "seed file")
}

func TestNew_MissingPolicy(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Engagement.ConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}

func TestNew_UnknownChannel(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Notification.Channels = []string{"pager"}
	_, err := New(context.Background(), cfg, logging.Discard())
	require.ErrorContains(t, err, "unsupported notification channel")
}

func TestNew_TelegramNeedsToken(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Notification.Channels = []string{"telegram"}
	_, err := New(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
}
