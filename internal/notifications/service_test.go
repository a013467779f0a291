package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"genstudio/internal/config"
	"genstudio/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyGenerationCompleted(context.Background(), "text-to-video", "/out/a.mp4"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Completions = true
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyGenerationCompleted(context.Background(), "lipsync", "/out/comfy_x_v.mp4"); err != nil {
		t.Fatalf("completion notification: %v", err)
	}
	if captured.title != "GenStudio - Complete" {
		t.Fatalf("title = %q", captured.title)
	}
	if captured.body != "Generation complete: lipsync\nOutput: /out/comfy_x_v.mp4" {
		t.Fatalf("body = %q", captured.body)
	}
	if captured.tags != "genstudio,generation,completed" {
		t.Fatalf("tags = %q", captured.tags)
	}
	if captured.priority != "" {
		t.Fatalf("priority = %q, want default", captured.priority)
	}

	if err := svc.NotifyGenerationFailed(context.Background(), "inpaint", errors.New("engine said no")); err != nil {
		t.Fatalf("failure notification: %v", err)
	}
	if captured.title != "GenStudio - Error" {
		t.Fatalf("title = %q", captured.title)
	}
	if captured.body != "Generation failed: inpaint\nengine said no" {
		t.Fatalf("body = %q", captured.body)
	}
	if captured.priority != "high" {
		t.Fatalf("priority = %q, want high", captured.priority)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed notification: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completions = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyGenerationCompleted(context.Background(), "t2v", "/out/a.mp4"); err != nil {
		t.Fatalf("suppressed completion returned error: %v", err)
	}
	if err := svc.NotifyGenerationFailed(context.Background(), "t2v", errors.New("x")); err != nil {
		t.Fatalf("suppressed error returned error: %v", err)
	}
	if err := svc.NotifyQueueRejected(context.Background(), "t2v"); err != nil {
		t.Fatalf("suppressed rejection returned error: %v", err)
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
