package comfy_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"genstudio/internal/services"
	"genstudio/internal/services/comfy"
	"genstudio/internal/workflow"
)

func newTestClient(t *testing.T, handler http.Handler) (comfy.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	address := strings.TrimPrefix(server.URL, "http://")
	return comfy.New(address, server.Client()), server
}

func TestUploadImageReturnsEngineName(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload/image" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		file.Close()
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "stored_" + header.Filename})
	}))

	path := filepath.Join(t.TempDir(), "face.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	name, err := client.UploadImage(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if name != "stored_face.png" {
		t.Fatalf("unexpected remote name %q", name)
	}
}

func TestUploadImageMissingFileSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	_, err := client.UploadImage(context.Background(), filepath.Join(t.TempDir(), "absent.png"))
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network calls, saw %d", calls.Load())
	}
}

func TestUploadImageNonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))

	path := filepath.Join(t.TempDir(), "face.png")
	if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	_, err := client.UploadImage(context.Background(), path)
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected engine detail in error, got %q", err.Error())
	}
}

func TestSubmitPromptCapturesPromptID(t *testing.T) {
	var received struct {
		Prompt   workflow.Graph `json:"prompt"`
		ClientID string         `json:"client_id"`
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prompt" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p-77"})
	}))

	var graph workflow.Graph
	if err := json.Unmarshal([]byte(`{"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "hi"}}}`), &graph); err != nil {
		t.Fatalf("parse graph: %v", err)
	}

	id, err := client.SubmitPrompt(context.Background(), graph, "client-1")
	if err != nil {
		t.Fatalf("SubmitPrompt: %v", err)
	}
	if id != "p-77" {
		t.Fatalf("unexpected prompt id %q", id)
	}
	if received.ClientID != "client-1" {
		t.Fatalf("expected client id forwarded, got %q", received.ClientID)
	}
	if _, ok := received.Prompt["6"]; !ok {
		t.Fatal("expected graph forwarded in prompt field")
	}
}

func TestSubmitPromptServerErrorIsSubmissionError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid prompt", http.StatusInternalServerError)
	}))

	_, err := client.SubmitPrompt(context.Background(), workflow.Graph{}, "client-1")
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestHistoryAbsentIDReportsNotReady(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	entry, ok, err := client.History(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if ok || entry != nil {
		t.Fatalf("expected not-ready, got ok=%v entry=%v", ok, entry)
	}
}

func TestHistoryReturnsEntryForKnownID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history/p-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"p-1": {"outputs": {"30": {"videos": [{"filename": "out.mp4", "subfolder": "", "type": "output"}]}}}}`))
	}))

	entry, ok, err := client.History(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !ok {
		t.Fatal("expected completed entry")
	}
	ref, found := entry.SelectArtifact()
	if !found || ref.Filename != "out.mp4" {
		t.Fatalf("unexpected artifact %v %v", ref, found)
	}
}

func TestDownloadWritesFile(t *testing.T) {
	var query url.Values
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/view" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query = r.URL.Query()
		_, _ = w.Write([]byte("video-bytes"))
	}))

	dest := filepath.Join(t.TempDir(), "out", "comfy_abc_out.mp4")
	ref := comfy.FileRef{Filename: "out.mp4", Subfolder: "sub", Type: "output"}
	if err := client.Download(context.Background(), ref, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("unexpected content %q", data)
	}
	if query.Get("filename") != "out.mp4" || query.Get("subfolder") != "sub" || query.Get("type") != "output" {
		t.Fatalf("unexpected query %v", query)
	}
}

func TestDownloadNonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	err := client.Download(context.Background(), comfy.FileRef{Filename: "x.mp4"}, filepath.Join(t.TempDir(), "x.mp4"))
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected download error, got %v", err)
	}
}
