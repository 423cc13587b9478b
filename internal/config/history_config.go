package config

// HistoryConfig controls the delivery history database
type HistoryConfig struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	DBPath            string `json:"db_path,omitempty" yaml:"db_path,omitempty" validate:"required_if=Enabled true"`
	ExportCompression string `json:"export_compression,omitempty" yaml:"export_compression,omitempty" validate:"omitempty,oneof=zstd snappy gzip none"`
}

// NewDefaultHistoryConfig creates default history configuration
func NewDefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled:           true,
		DBPath:            "data/history.db",
		ExportCompression: "zstd",
	}
}
