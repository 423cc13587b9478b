package models

import "time"

// SessionRecord is one row of the session history table.
type SessionRecord struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	Folders   int
	Endpoints int
	Delivered int64
	Failed    int64
}

// DeliveryRecord is one persisted (file, endpoint) attempt.
type DeliveryRecord struct {
	ID           int64
	SessionID    string
	Folder       string
	FilePath     string
	EndpointName string
	EndpointURL  string
	Outcome      string
	StatusCode   int
	Error        string
	DurationMs   int64
	AttemptedAt  time.Time
}

// ParquetDelivery is the export schema for delivery history.
type ParquetDelivery struct {
	SessionID    string  `parquet:"session_id"`
	Folder       string  `parquet:"folder"`
	FilePath     string  `parquet:"file_path"`
	EndpointName string  `parquet:"endpoint_name"`
	EndpointURL  string  `parquet:"endpoint_url"`
	Outcome      string  `parquet:"outcome"`
	StatusCode   *int32  `parquet:"status_code,optional"`
	Error        *string `parquet:"error,optional"`
	DurationMs   int64   `parquet:"duration_ms"`
	AttemptedAt  int64   `parquet:"attempted_at"` // unix millis
}

// ToParquet converts a delivery record into its export row.
func (r DeliveryRecord) ToParquet() ParquetDelivery {
	row := ParquetDelivery{
		SessionID:    r.SessionID,
		Folder:       r.Folder,
		FilePath:     r.FilePath,
		EndpointName: r.EndpointName,
		EndpointURL:  r.EndpointURL,
		Outcome:      r.Outcome,
		DurationMs:   r.DurationMs,
		AttemptedAt:  r.AttemptedAt.UnixMilli(),
	}
	if r.StatusCode != 0 {
		sc := int32(r.StatusCode)
		row.StatusCode = &sc
	}
	if r.Error != "" {
		e := r.Error
		row.Error = &e
	}
	return row
}
