package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// compressionOption maps a codec name to a writer option; unknown names fall back to zstd.
func compressionOption(codec string, logger zerolog.Logger) parquet.WriterOption {
	switch strings.ToLower(codec) {
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed)
	case "zstd", "":
		return parquet.Compression(&parquet.Zstd)
	default:
		logger.Warn().Str("codec", codec).Msg("Unsupported compression codec, using zstd")
		return parquet.Compression(&parquet.Zstd)
	}
}

// ExportDeliveriesParquet writes records to a Parquet file at path and returns the row count.
func ExportDeliveriesParquet(records []models.DeliveryRecord, path, codec string, logger zerolog.Logger) (int, error) {
	logger = logger.With().Str("component", "ParquetExport").Logger()

	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("export path is empty: %w", common.ErrInvalidInput)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("creating export directory '%s': %w", dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("opening export file '%s': %w", path, err)
	}
	defer file.Close()

	rows := make([]models.ParquetDelivery, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.ToParquet())
	}

	writer := parquet.NewGenericWriter[models.ParquetDelivery](file, compressionOption(codec, logger))
	if _, err := writer.Write(rows); err != nil {
		return 0, fmt.Errorf("writing parquet rows to '%s': %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("closing parquet writer for '%s': %w", path, err)
	}

	logger.Info().Str("path", path).Int("rows", len(rows)).Msg("Exported delivery history")
	return len(rows), nil
}
