package config

import (
	"encoding/json"
	"os"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
)

// LegacyWebhook is a webhook entry of the legacy settings file. A missing
// "enabled" key means enabled.
type LegacyWebhook struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled *bool  `json:"enabled"`
}

// LegacyFolder is a folder entry of the legacy settings file. A missing
// "enabled" key means enabled.
type LegacyFolder struct {
	Path      string `json:"path"`
	Enabled   *bool  `json:"enabled"`
	Recursive bool   `json:"recursive"`
}

// LegacySettings mirrors the settings file written by the desktop uploader.
type LegacySettings struct {
	Webhooks    []LegacyWebhook `json:"webhooks"`
	Folders     []LegacyFolder  `json:"folders"`
	ScanRate    *float64        `json:"scan_rate"`
	SendTimeout *float64        `json:"send_timeout"`
	FileDelay   *float64        `json:"file_delay"`
	Formats     string          `json:"formats"`

	// Single-target fields from the oldest settings layout.
	WebhookURL string `json:"webhook_url"`
	FolderPath string `json:"folder_path"`
}

// LoadLegacySettings reads a legacy JSON settings file and converts it into a GlobalConfig.
// Missing values keep their defaults.
func LoadLegacySettings(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapErrorf(err, "failed to read legacy settings '%s'", path)
	}

	var legacy LegacySettings
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, common.NewError("failed to unmarshal legacy settings from '%s': %w", path, err)
	}
	return legacy.ToGlobalConfig(), nil
}

// ToGlobalConfig migrates the legacy layout, including the single webhook_url and
// folder_path fields, which only apply when the list forms are empty.
func (ls LegacySettings) ToGlobalConfig() *GlobalConfig {
	cfg := NewDefaultGlobalConfig()

	for _, w := range ls.Webhooks {
		cfg.DispatchConfig.Endpoints = append(cfg.DispatchConfig.Endpoints, models.WebhookEndpoint{
			Name:    w.Name,
			URL:     w.URL,
			Enabled: enabledOrDefault(w.Enabled),
		})
	}
	if len(cfg.DispatchConfig.Endpoints) == 0 && ls.WebhookURL != "" {
		cfg.DispatchConfig.Endpoints = []models.WebhookEndpoint{
			{Name: "Default", URL: ls.WebhookURL, Enabled: true},
		}
	}

	for _, f := range ls.Folders {
		cfg.WatchConfig.Folders = append(cfg.WatchConfig.Folders, models.WatchedFolder{
			Path:      f.Path,
			Enabled:   enabledOrDefault(f.Enabled),
			Recursive: f.Recursive,
		})
	}
	if len(cfg.WatchConfig.Folders) == 0 && ls.FolderPath != "" {
		cfg.WatchConfig.Folders = []models.WatchedFolder{
			{Path: ls.FolderPath, Enabled: true, Recursive: false},
		}
	}

	if ls.ScanRate != nil {
		cfg.WatchConfig.ScanIntervalSeconds = *ls.ScanRate
	}
	if ls.FileDelay != nil {
		cfg.WatchConfig.SettleDelaySeconds = *ls.FileDelay
	}
	if ls.SendTimeout != nil {
		cfg.DispatchConfig.SendTimeoutSeconds = *ls.SendTimeout
	}
	if ls.Formats != "" {
		cfg.WatchConfig.Extensions = ls.Formats
	}
	return cfg
}

func enabledOrDefault(enabled *bool) bool {
	return enabled == nil || *enabled
}
