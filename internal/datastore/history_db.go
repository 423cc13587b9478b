package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	ended_at INTEGER,
	folders INTEGER NOT NULL DEFAULT 0,
	endpoints INTEGER NOT NULL DEFAULT 0,
	delivered INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS deliveries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	folder TEXT NOT NULL,
	file_path TEXT NOT NULL,
	endpoint_name TEXT NOT NULL,
	endpoint_url TEXT NOT NULL,
	outcome TEXT NOT NULL,
	status_code INTEGER,
	error TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	attempted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_session ON deliveries(session_id);
`

// HistoryDB stores session and delivery history in SQLite.
// Times are kept as unix milliseconds.
type HistoryDB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewHistoryDB opens (creating if needed) the database at path and ensures the schema.
func NewHistoryDB(path string, logger zerolog.Logger) (*HistoryDB, error) {
	logger = logger.With().Str("component", "HistoryDB").Logger()
	logger.Info().Str("db_path", path).Msg("Initializing history database connection")

	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error().Err(err).Str("directory", dbDir).Msg("Failed to create history database directory")
		return nil, fmt.Errorf("failed to create history database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error().Err(err).Str("db_path", path).Msg("Failed to open history database")
		return nil, fmt.Errorf("sql.Open failed for %s: %w", path, err)
	}
	// SQLite allows one writer at a time.
	dbInstance.SetMaxOpenConns(1)

	h := &HistoryDB{
		db:     dbInstance,
		logger: logger,
	}

	if err := h.InitSchema(); err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// InitSchema creates the sessions and deliveries tables if missing.
func (h *HistoryDB) InitSchema() error {
	if _, err := h.db.Exec(historySchema); err != nil {
		h.logger.Error().Err(err).Msg("Failed to initialize history schema")
		return err
	}
	h.logger.Debug().Msg("History schema ensured")
	return nil
}

// RecordSessionStart inserts a session row.
func (h *HistoryDB) RecordSessionStart(ctx context.Context, rec models.SessionRecord) error {
	query := `INSERT INTO sessions (id, started_at, folders, endpoints) VALUES (?, ?, ?, ?)`
	if _, err := h.db.ExecContext(ctx, query, rec.ID, rec.StartedAt.UnixMilli(), rec.Folders, rec.Endpoints); err != nil {
		h.logger.Error().Err(err).Str("session_id", rec.ID).Msg("Failed to record session start")
		return fmt.Errorf("failed to insert session %s: %w", rec.ID, err)
	}
	return nil
}

// RecordDispatch inserts one delivery attempt.
func (h *HistoryDB) RecordDispatch(ctx context.Context, sessionID, folder string, outcome models.DispatchOutcome) error {
	query := `INSERT INTO deliveries (session_id, folder, file_path, endpoint_name, endpoint_url, outcome, status_code, error, duration_ms, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	attemptedAt := outcome.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = time.Now()
	}
	errMsg := outcome.ErrorMessage()

	_, err := h.db.ExecContext(ctx, query,
		sessionID,
		folder,
		outcome.FilePath,
		outcome.Endpoint.Name,
		outcome.Endpoint.URL,
		outcome.Kind.String(),
		sql.NullInt64{Int64: int64(outcome.StatusCode), Valid: outcome.StatusCode != 0},
		sql.NullString{String: errMsg, Valid: errMsg != ""},
		outcome.Duration.Milliseconds(),
		attemptedAt.UnixMilli(),
	)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Str("file", outcome.FilePath).Msg("Failed to record dispatch")
		return fmt.Errorf("failed to insert delivery for %s: %w", outcome.FilePath, err)
	}
	return nil
}

// RecordSessionEnd stores the final counters of a session.
func (h *HistoryDB) RecordSessionEnd(ctx context.Context, sessionID string, counters models.Counters, endedAt time.Time) error {
	query := `UPDATE sessions SET ended_at = ?, delivered = ?, failed = ? WHERE id = ?`
	res, err := h.db.ExecContext(ctx, query, endedAt.UnixMilli(), counters.Delivered, counters.Failed, sessionID)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to record session end")
		return fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, common.ErrNotFound)
	}
	return nil
}

// ListSessions returns the most recent sessions first. limit <= 0 means no limit.
func (h *HistoryDB) ListSessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	query := `SELECT id, started_at, ended_at, folders, endpoints, delivered, failed FROM sessions ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRecord
	for rows.Next() {
		var (
			rec       models.SessionRecord
			startedAt int64
			endedAt   sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &startedAt, &endedAt, &rec.Folders, &rec.Endpoints, &rec.Delivered, &rec.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedAt)
		if endedAt.Valid {
			t := time.UnixMilli(endedAt.Int64)
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListDeliveries returns delivery attempts in insertion order. An empty
// sessionID returns deliveries of every session.
func (h *HistoryDB) ListDeliveries(ctx context.Context, sessionID string) ([]models.DeliveryRecord, error) {
	query := `SELECT id, session_id, folder, file_path, endpoint_name, endpoint_url, outcome, status_code, error, duration_ms, attempted_at FROM deliveries`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id`

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var out []models.DeliveryRecord
	for rows.Next() {
		var (
			rec         models.DeliveryRecord
			statusCode  sql.NullInt64
			errMsg      sql.NullString
			attemptedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Folder, &rec.FilePath, &rec.EndpointName, &rec.EndpointURL,
			&rec.Outcome, &statusCode, &errMsg, &rec.DurationMs, &attemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery row: %w", err)
		}
		rec.StatusCode = int(statusCode.Int64)
		rec.Error = errMsg.String
		rec.AttemptedAt = time.UnixMilli(attemptedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
