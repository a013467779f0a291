package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genstudio/internal/config"
)

const userAgent = "GenStudio-Go/0.1.0"

// Service defines the notification surface exposed to job components.
type Service interface {
	NotifyGenerationCompleted(ctx context.Context, operation, artifact string) error
	NotifyGenerationFailed(ctx context.Context, operation string, cause error) error
	NotifyQueueRejected(ctx context.Context, operation string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		completions: cfg.Notifications.Completions,
		errors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	completions bool
	errors      bool
}

func (n *ntfyService) NotifyGenerationCompleted(ctx context.Context, operation, artifact string) error {
	if !n.completions {
		return nil
	}
	operation = strings.TrimSpace(operation)
	message := fmt.Sprintf("Generation complete: %s", operation)
	if artifact = strings.TrimSpace(artifact); artifact != "" {
		message = fmt.Sprintf("%s\nOutput: %s", message, artifact)
	}
	data := payload{
		title:   "GenStudio - Complete",
		message: message,
		tags:    []string{"genstudio", "generation", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationFailed(ctx context.Context, operation string, cause error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Generation failed")
	if operation = strings.TrimSpace(operation); operation != "" {
		builder.WriteString(": ")
		builder.WriteString(operation)
	}
	builder.WriteString("\n")
	if cause != nil {
		builder.WriteString(strings.TrimSpace(cause.Error()))
	} else {
		builder.WriteString("unknown error")
	}

	data := payload{
		title:    "GenStudio - Error",
		message:  builder.String(),
		tags:     []string{"genstudio", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueRejected(ctx context.Context, operation string) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:   "GenStudio - Queue Full",
		message: fmt.Sprintf("Rejected %s: job queue is full", strings.TrimSpace(operation)),
		tags:    []string{"genstudio", "queue", "rejected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "GenStudio - Test",
		message:  "Notification system test",
		tags:     []string{"genstudio", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyGenerationCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyGenerationFailed(context.Context, string, error) error     { return nil }
func (noopService) NotifyQueueRejected(context.Context, string) error               { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
