package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// FileFieldName is the multipart field carrying the upload.
	FileFieldName = "file"

	DefaultSendTimeout = 30 * time.Second

	maxErrorBodyBytes = 512
	// maxDrainBytes bounds how much of a response is discarded to keep the connection reusable.
	maxDrainBytes    = 64 << 10
	fallbackMIMEType = "application/octet-stream"
)

// imageMIMETypes covers the default allow-list regardless of the host's mime tables.
var imageMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// EventSink receives one dispatch event per Send call.
type EventSink func(models.Event)

// DispatcherConfig controls upload behaviour.
type DispatcherConfig struct {
	SendTimeout         time.Duration
	MaxUploadsPerSecond float64 // per endpoint URL; zero disables throttling
}

// WebhookDispatcher uploads files to webhook endpoints as multipart/form-data.
type WebhookDispatcher struct {
	logger     zerolog.Logger
	httpClient *http.Client
	cfg        DispatcherConfig
	sink       EventSink

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// NewWebhookDispatcher creates a dispatcher. A nil client falls back to a plain
// client; a nil sink discards events.
func NewWebhookDispatcher(httpClient *http.Client, cfg DispatcherConfig, logger zerolog.Logger, sink EventSink) *WebhookDispatcher {
	moduleLogger := logger.With().Str("module", "WebhookDispatcher").Logger()

	if httpClient == nil {
		moduleLogger.Warn().Msg("HTTP client is nil, using default HTTP client.")
		httpClient = &http.Client{}
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if sink == nil {
		sink = func(models.Event) {}
	}

	return &WebhookDispatcher{
		logger:     moduleLogger,
		httpClient: httpClient,
		cfg:        cfg,
		sink:       sink,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// SendAll sends filePath to every endpoint in order. Every endpoint is attempted
// regardless of earlier outcomes.
func (d *WebhookDispatcher) SendAll(ctx context.Context, filePath string, endpoints []models.WebhookEndpoint) []models.DispatchOutcome {
	outcomes := make([]models.DispatchOutcome, 0, len(endpoints))
	for _, ep := range endpoints {
		outcomes = append(outcomes, d.Send(ctx, filePath, ep))
	}
	return outcomes
}

// Send uploads one file to one endpoint and classifies the result.
// It never returns an error; failures are carried in the outcome.
func (d *WebhookDispatcher) Send(ctx context.Context, filePath string, ep models.WebhookEndpoint) (outcome models.DispatchOutcome) {
	started := time.Now()
	outcome = models.DispatchOutcome{
		FilePath:    filePath,
		Endpoint:    ep,
		AttemptedAt: started,
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Kind = models.OutcomeTransportFailure
			outcome.Err = fmt.Errorf("upload panicked: %v", r)
		}
		outcome.Duration = time.Since(started)
		d.report(outcome)
	}()

	if err := d.wait(ctx, ep.URL); err != nil {
		outcome.Kind = models.OutcomeTransportFailure
		outcome.Err = common.NewNetworkError(ep.URL, "rate limiter wait failed", err)
		return outcome
	}

	status, body, err := d.upload(ctx, filePath, ep.URL)
	switch {
	case err != nil:
		outcome.Kind = models.OutcomeTransportFailure
		outcome.Err = err
	case isSuccessStatus(status):
		outcome.Kind = models.OutcomeDelivered
		outcome.StatusCode = status
	default:
		outcome.Kind = models.OutcomeRejectedByServer
		outcome.StatusCode = status
		outcome.Err = common.NewHTTPErrorWithURL(status, body, ep.URL)
	}
	return outcome
}

func (d *WebhookDispatcher) upload(ctx context.Context, filePath, webhookURL string) (int, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	file, err := os.Open(filePath)
	if err != nil {
		return 0, "", common.WrapErrorf(err, "failed to open '%s'", filePath)
	}
	defer file.Close()

	part, err := writer.CreatePart(fileHeader(filepath.Base(filePath), DetectMIMEType(filePath)))
	if err != nil {
		return 0, "", common.WrapError(err, "failed to create form file")
	}
	if _, err := io.Copy(part, file); err != nil {
		return 0, "", common.WrapError(err, "failed to copy file data to form")
	}
	if err := writer.Close(); err != nil {
		return 0, "", common.WrapError(err, "failed to close multipart writer")
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, body)
	if err != nil {
		return 0, "", common.NewNetworkError(webhookURL, "failed to create request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", common.NewNetworkError(webhookURL, "upload failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, strings.TrimSpace(string(respBody)), nil
}

func (d *WebhookDispatcher) wait(ctx context.Context, webhookURL string) error {
	if d.cfg.MaxUploadsPerSecond <= 0 {
		return nil
	}

	d.limitersMu.Lock()
	limiter, ok := d.limiters[webhookURL]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(d.cfg.MaxUploadsPerSecond), 1)
		d.limiters[webhookURL] = limiter
	}
	d.limitersMu.Unlock()

	return limiter.Wait(ctx)
}

func (d *WebhookDispatcher) report(outcome models.DispatchOutcome) {
	fname := filepath.Base(outcome.FilePath)
	name := outcome.Endpoint.Name

	var msg string
	switch outcome.Kind {
	case models.OutcomeDelivered:
		msg = fmt.Sprintf("%s -> %s", fname, name)
		d.logger.Info().Int("status_code", outcome.StatusCode).Str("endpoint", name).Str("file", outcome.FilePath).Msg("File delivered")
	case models.OutcomeRejectedByServer:
		msg = fmt.Sprintf("HTTP %d %s -> %s", outcome.StatusCode, fname, name)
		d.logger.Error().Int("status_code", outcome.StatusCode).Str("endpoint", name).Str("webhook_url", outcome.Endpoint.URL).Str("file", outcome.FilePath).Msg("Webhook rejected upload")
	default:
		msg = fmt.Sprintf("Error %s -> %s: %v", fname, name, outcome.Err)
		d.logger.Error().Err(outcome.Err).Str("endpoint", name).Str("webhook_url", outcome.Endpoint.URL).Str("file", outcome.FilePath).Msg("Upload failed")
	}

	o := outcome
	d.sink(models.Event{
		Type:     models.EventDispatch,
		Path:     outcome.FilePath,
		Endpoint: name,
		Outcome:  &o,
		Message:  msg,
		Err:      outcome.Err,
	})
}

// DetectMIMEType guesses a content type from the file extension.
func DetectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := imageMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return fallbackMIMEType
}

func isSuccessStatus(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return true
	default:
		return false
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileFieldName, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}
