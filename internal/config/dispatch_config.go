package config

import (
	"github.com/aleister1102/folderhook/internal/httpclient"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/aleister1102/folderhook/internal/notifier"
)

// DispatchConfig defines the webhook endpoints and upload transport
type DispatchConfig struct {
	Endpoints           []models.WebhookEndpoint `json:"endpoints,omitempty" yaml:"endpoints,omitempty" validate:"dive"`
	SendTimeoutSeconds  float64                  `json:"send_timeout_seconds,omitempty" yaml:"send_timeout_seconds,omitempty" validate:"gte=0"`
	MaxUploadsPerSecond float64                  `json:"max_uploads_per_second,omitempty" yaml:"max_uploads_per_second,omitempty" validate:"gte=0"`
	Proxy               string                   `json:"proxy,omitempty" yaml:"proxy,omitempty" validate:"omitempty,url"`
	InsecureSkipVerify  bool                     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	UserAgent           string                   `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	DisableHTTP2        bool                     `json:"disable_http2,omitempty" yaml:"disable_http2,omitempty"`
	CustomHeaders       map[string]string        `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`
}

// NewDefaultDispatchConfig creates default dispatch configuration
func NewDefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Endpoints:          []models.WebhookEndpoint{},
		SendTimeoutSeconds: notifier.DefaultSendTimeout.Seconds(),
		CustomHeaders:      map[string]string{},
	}
}

// ToDispatcherConfig returns the per-upload settings for the webhook dispatcher.
func (dc DispatchConfig) ToDispatcherConfig() notifier.DispatcherConfig {
	return notifier.DispatcherConfig{
		SendTimeout:         secondsToDuration(dc.SendTimeoutSeconds),
		MaxUploadsPerSecond: dc.MaxUploadsPerSecond,
	}
}

// ToHTTPClientConfig returns the transport settings for the upload client.
// Timeouts are enforced per request by the dispatcher, so the client itself has none.
func (dc DispatchConfig) ToHTTPClientConfig() httpclient.HTTPClientConfig {
	cfg := httpclient.DefaultHTTPClientConfig()
	cfg.Timeout = 0
	cfg.Proxy = dc.Proxy
	cfg.InsecureSkipVerify = dc.InsecureSkipVerify
	cfg.EnableHTTP2 = !dc.DisableHTTP2
	if dc.UserAgent != "" {
		cfg.UserAgent = dc.UserAgent
	}
	for k, v := range dc.CustomHeaders {
		cfg.CustomHeaders[k] = v
	}
	return cfg
}
