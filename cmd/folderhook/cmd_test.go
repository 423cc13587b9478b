package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/folderhook/internal/config"
	"github.com/aleister1102/folderhook/internal/datastore"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigImportLegacyCommand(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "settings.json")
	out := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"webhook_url": "https://hooks.example/x", "folder_path": "/pictures", "scan_rate": 3}`), 0644))

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"config", "import-legacy", legacy, "--out", out})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, stdout.String(), "Imported 1 folder(s) and 1 webhook(s)")

	cfg, err := config.LoadGlobalConfig(out, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.WatchConfig.ScanIntervalSeconds)
	require.Len(t, cfg.DispatchConfig.Endpoints, 1)
	assert.Equal(t, "Default", cfg.DispatchConfig.Endpoints[0].Name)
}

func TestRunMonitorDeliversAndRecordsHistory(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err == nil {
			received.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	watchDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(watchDir, "existing.png"), []byte("old"), 0644))

	cfg := config.NewDefaultGlobalConfig()
	cfg.WatchConfig.Folders = []models.WatchedFolder{{Path: watchDir, Enabled: true}}
	cfg.WatchConfig.ScanIntervalSeconds = 0.02
	cfg.WatchConfig.SettleDelaySeconds = 0.01
	cfg.DispatchConfig.Endpoints = []models.WebhookEndpoint{{Name: "test", URL: srv.URL, Enabled: true}}
	cfg.HistoryConfig.DBPath = filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, config.ValidateConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runMonitor(ctx, cfg, zerolog.Nop()) }()

	// The snapshot runs asynchronously, so keep adding files until one is uploaded.
	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = os.WriteFile(filepath.Join(watchDir, fmt.Sprintf("new-%d.png", n)), []byte("img"), 0644)
		return received.Load() > 0
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runMonitor did not return after cancel")
	}

	db, err := datastore.NewHistoryDB(cfg.HistoryConfig.DBPath, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	sessions, err := db.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].EndedAt)
	assert.Positive(t, sessions[0].Delivered)
	assert.Zero(t, sessions[0].Failed)

	deliveries, err := db.ListDeliveries(context.Background(), sessions[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, deliveries)
	for _, d := range deliveries {
		assert.NotEqual(t, "existing.png", filepath.Base(d.FilePath))
		assert.Equal(t, models.OutcomeDelivered.String(), d.Outcome)
	}
}
