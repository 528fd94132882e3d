package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Logger is the interface for application-wide logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	FlushWebhook() error
}

// hybridLogger outputs to stdout in real-time and buffers logs for webhook.
type hybridLogger struct {
	stdoutHandler  *slog.JSONHandler
	webhookBuffer  []slog.Record
	mu             sync.Mutex
	minLevel       Level
	webhookURL     string
	webhookTimeout time.Duration
	appName        string
	env            string
	client         *http.Client
}

// NewHybridLogger creates a new hybrid logger.
func NewHybridLogger(cfg Config) Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &hybridLogger{
		stdoutHandler:  slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slogLevel(cfg.Level)}),
		minLevel:       cfg.Level,
		webhookURL:     cfg.WebhookURL,
		webhookTimeout: timeout,
		appName:        cfg.AppName,
		env:            cfg.Environment,
		client:         &http.Client{Timeout: timeout},
	}
}

// webhookEntry is one buffered record as posted to the webhook.
type webhookEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type webhookPayload struct {
	App         string         `json:"app"`
	Environment string         `json:"environment"`
	Logs        []webhookEntry `json:"logs"`
}

// sendToWebhook posts the buffered records as a single JSON document.
func (h *hybridLogger) sendToWebhook(logs []slog.Record) error {
	payload := webhookPayload{App: h.appName, Environment: h.env, Logs: make([]webhookEntry, 0, len(logs))}
	for _, rec := range logs {
		entry := webhookEntry{
			Time:    rec.Time.Format(time.RFC3339Nano),
			Level:   rec.Level.String(),
			Message: rec.Message,
		}
		rec.Attrs(func(a slog.Attr) bool {
			if entry.Attrs == nil {
				entry.Attrs = make(map[string]any)
			}
			entry.Attrs[a.Key] = a.Value.Resolve().Any()
			return true
		})
		payload.Logs = append(payload.Logs, entry)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	resp, err := h.client.Post(h.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// slogLevel converts our Level to slog.Level
func slogLevel(lvl Level) slog.Level {
	switch lvl {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *hybridLogger) log(level slog.Level, msg string, args ...interface{}) {
	if levelFromSlog(level) < h.minLevel {
		return
	}
	rec := slog.NewRecord(time.Now(), level, msg, 0)
	rec.Add(args...)
	_ = h.stdoutHandler.Handle(context.Background(), rec)
	if h.webhookURL != "" {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.webhookBuffer = append(h.webhookBuffer, rec)
	}
}

func (h *hybridLogger) Debug(msg string, args ...interface{}) { h.log(slog.LevelDebug, msg, args...) }
func (h *hybridLogger) Info(msg string, args ...interface{})  { h.log(slog.LevelInfo, msg, args...) }
func (h *hybridLogger) Warn(msg string, args ...interface{})  { h.log(slog.LevelWarn, msg, args...) }
func (h *hybridLogger) Error(msg string, args ...interface{}) { h.log(slog.LevelError, msg, args...) }

func (h *hybridLogger) FlushWebhook() error {
	if h.webhookURL == "" {
		return nil
	}
	h.mu.Lock()
	if len(h.webhookBuffer) == 0 {
		h.mu.Unlock()
		return nil
	}
	logs := make([]slog.Record, len(h.webhookBuffer))
	copy(logs, h.webhookBuffer)
	h.webhookBuffer = h.webhookBuffer[:0]
	h.mu.Unlock()
	return h.sendToWebhook(logs)
}

// levelFromSlog converts slog.Level to our Level type
func levelFromSlog(lvl slog.Level) Level {
	switch lvl {
	case slog.LevelDebug:
		return LevelDebug
	case slog.LevelWarn:
		return LevelWarn
	case slog.LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}
