package datastore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := NewHistoryDB(filepath.Join(t.TempDir(), "nested", "history.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryDBSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordSessionStart(ctx, models.SessionRecord{ID: "older", StartedAt: started, Folders: 1, Endpoints: 1}))
	require.NoError(t, db.RecordSessionStart(ctx, models.SessionRecord{ID: "newer", StartedAt: started.Add(time.Hour), Folders: 2, Endpoints: 3}))
	require.NoError(t, db.RecordSessionEnd(ctx, "older", models.Counters{Delivered: 4, Failed: 1}, started.Add(10*time.Minute)))

	sessions, err := db.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "newer", sessions[0].ID)
	assert.Nil(t, sessions[0].EndedAt)
	assert.Equal(t, 3, sessions[0].Endpoints)

	assert.Equal(t, "older", sessions[1].ID)
	require.NotNil(t, sessions[1].EndedAt)
	assert.True(t, started.Add(10*time.Minute).Equal(*sessions[1].EndedAt))
	assert.Equal(t, int64(4), sessions[1].Delivered)
	assert.Equal(t, int64(1), sessions[1].Failed)

	limited, err := db.ListSessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.ErrorIs(t, db.RecordSessionEnd(ctx, "missing", models.Counters{}, time.Now()), common.ErrNotFound)
	assert.Error(t, db.RecordSessionStart(ctx, models.SessionRecord{ID: "older", StartedAt: started}))
}

func TestHistoryDBDeliveries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ep := models.WebhookEndpoint{Name: "main", URL: "http://hook.local/up"}
	require.NoError(t, db.RecordDispatch(ctx, "s1", "/watch", models.DispatchOutcome{
		FilePath: "/watch/a.png", Endpoint: ep, Kind: models.OutcomeDelivered, StatusCode: 200,
		Duration: 25 * time.Millisecond, AttemptedAt: at,
	}))
	require.NoError(t, db.RecordDispatch(ctx, "s1", "/watch", models.DispatchOutcome{
		FilePath: "/watch/b.png", Endpoint: ep, Kind: models.OutcomeTransportFailure,
		Err: errors.New("connection refused"), AttemptedAt: at,
	}))
	require.NoError(t, db.RecordDispatch(ctx, "s2", "/other", models.DispatchOutcome{
		FilePath: "/other/c.png", Endpoint: ep, Kind: models.OutcomeRejectedByServer, StatusCode: 500, AttemptedAt: at,
	}))

	s1, err := db.ListDeliveries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, "delivered", s1[0].Outcome)
	assert.Equal(t, 200, s1[0].StatusCode)
	assert.Equal(t, int64(25), s1[0].DurationMs)
	assert.True(t, at.Equal(s1[0].AttemptedAt))
	assert.Equal(t, "transport_failure", s1[1].Outcome)
	assert.Equal(t, 0, s1[1].StatusCode)
	assert.Equal(t, "connection refused", s1[1].Error)

	all, err := db.ListDeliveries(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestExportDeliveriesParquet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ep := models.WebhookEndpoint{Name: "main", URL: "http://hook.local/up"}

	require.NoError(t, db.RecordDispatch(ctx, "s1", "/watch", models.DispatchOutcome{
		FilePath: "/watch/a.png", Endpoint: ep, Kind: models.OutcomeDelivered, StatusCode: 201, AttemptedAt: at,
	}))
	require.NoError(t, db.RecordDispatch(ctx, "s1", "/watch", models.DispatchOutcome{
		FilePath: "/watch/b.png", Endpoint: ep, Kind: models.OutcomeTransportFailure, Err: errors.New("timeout"), AttemptedAt: at,
	}))

	records, err := db.ListDeliveries(ctx, "s1")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export", "deliveries.parquet")
	n, err := ExportDeliveriesParquet(records, out, "snappy", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := parquet.ReadFile[models.ParquetDelivery](out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/watch/a.png", rows[0].FilePath)
	require.NotNil(t, rows[0].StatusCode)
	assert.Equal(t, int32(201), *rows[0].StatusCode)
	assert.Nil(t, rows[1].StatusCode)
	require.NotNil(t, rows[1].Error)
	assert.Equal(t, "timeout", *rows[1].Error)
	assert.Equal(t, at.UnixMilli(), rows[1].AttemptedAt)
}

func TestExportDeliveriesParquetRejectsEmptyPath(t *testing.T) {
	_, err := ExportDeliveriesParquet(nil, " ", "zstd", zerolog.Nop())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
