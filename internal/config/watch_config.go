package config

import (
	"time"

	"github.com/aleister1102/folderhook/internal/models"
	"github.com/aleister1102/folderhook/internal/monitor"
	"github.com/aleister1102/folderhook/internal/scanner"
)

// WatchConfig defines which folders are polled and how often
type WatchConfig struct {
	Folders             []models.WatchedFolder `json:"folders,omitempty" yaml:"folders,omitempty" validate:"dive"`
	ScanIntervalSeconds float64                `json:"scan_interval_seconds,omitempty" yaml:"scan_interval_seconds,omitempty" validate:"gte=0"`
	SettleDelaySeconds  float64                `json:"settle_delay_seconds" yaml:"settle_delay_seconds" validate:"gte=0"`
	Extensions          string                 `json:"extensions,omitempty" yaml:"extensions,omitempty" validate:"omitempty,extlist"`
	Debug               bool                   `json:"debug,omitempty" yaml:"debug,omitempty"`
	WatchEvents         bool                   `json:"watch_events,omitempty" yaml:"watch_events,omitempty"`
}

// NewDefaultWatchConfig creates default watch configuration
func NewDefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Folders:             []models.WatchedFolder{},
		ScanIntervalSeconds: monitor.DefaultScanInterval.Seconds(),
		SettleDelaySeconds:  monitor.DefaultSettleDelay.Seconds(),
		Extensions:          scanner.DefaultExtensions,
	}
}

// ToSessionOptions converts the watch and dispatch sections into session options.
func (wc WatchConfig) ToSessionOptions(endpoints []models.WebhookEndpoint) monitor.Options {
	return monitor.Options{
		Folders:      wc.Folders,
		Endpoints:    endpoints,
		ScanInterval: secondsToDuration(wc.ScanIntervalSeconds),
		SettleDelay:  secondsToDuration(wc.SettleDelaySeconds),
		Extensions:   scanner.ParseExtensions(wc.Extensions),
		Debug:        wc.Debug,
		WatchEvents:  wc.WatchEvents,
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
