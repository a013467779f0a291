package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"genstudio/internal/config"
	"genstudio/internal/daemon"
	"genstudio/internal/generate"
	"genstudio/internal/history"
	"genstudio/internal/jobs"
	"genstudio/internal/logging"
	"genstudio/internal/testsupport"
)

// fakeEngine mimics the node-graph engine's HTTP surface.
func fakeEngine(t *testing.T) *httptest.Server {
	t.Helper()
	var historyCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/image", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "staged.png"})
	})
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p1"})
	})
	mux.HandleFunc("/history/", func(w http.ResponseWriter, r *http.Request) {
		if historyCalls.Add(1) < 2 {
			fmt.Fprint(w, "{}")
			return
		}
		fmt.Fprint(w, `{"p1": {"outputs": {"9": {"videos": [{"filename": "out.mp4", "subfolder": "", "type": "output"}]}}}}`)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, engineAddr string) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithServers(engineAddr))
	cfg.Jobs.PollInterval = 1
	testsupport.WriteTemplate(t, cfg.Paths.WorkflowsDir, "t2v", "")
	return cfg
}

func waitForState(t *testing.T, d *daemon.Daemon, id string, want jobs.State) daemon.JobView {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if view, ok := d.Job(id); ok && view.State == want {
			return view
		}
		time.Sleep(20 * time.Millisecond)
	}
	view, _ := d.Job(id)
	t.Fatalf("job never reached %s, last view: %+v", want, view)
	return daemon.JobView{}
}

func TestDaemonRunsGenerationEndToEnd(t *testing.T) {
	engine := fakeEngine(t)
	cfg := testConfig(t, strings.TrimPrefix(engine.URL, "http://"))

	ledger, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	d, err := daemon.New(cfg, logging.NewNop(), ledger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	id, err := d.StartGeneration(ctx, generate.OpTextToVideo, generate.Params{Prompt: "a fox"})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}

	view := waitForState(t, d, id, jobs.StateFinished)
	if view.Artifact == "" {
		t.Fatalf("no artifact recorded: %+v", view)
	}
	if _, err := os.Stat(view.Artifact); err != nil {
		t.Fatalf("artifact missing on disk: %v", err)
	}
	if view.Template != "t2v" {
		t.Fatalf("template = %s", view.Template)
	}

	// The ledger is finalized after the stream ends.
	deadline := time.Now().Add(5 * time.Second)
	for {
		gen, err := ledger.GetByJobID(ctx, id)
		if err != nil {
			t.Fatalf("ledger lookup: %v", err)
		}
		if gen.State == string(jobs.StateFinished) {
			if gen.Artifact != view.Artifact {
				t.Fatalf("ledger artifact = %s, want %s", gen.Artifact, view.Artifact)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ledger never finalized: %+v", gen)
		}
		time.Sleep(20 * time.Millisecond)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon still reports running after stop")
	}
}

func TestDaemonHTTPAPIAndEventStream(t *testing.T) {
	engine := fakeEngine(t)
	cfg := testConfig(t, strings.TrimPrefix(engine.URL, "http://"))

	d, err := daemon.New(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	base := "http://" + d.APIAddr()

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	_ = resp.Body.Close()
	if !status.Running || status.Templates != 1 {
		t.Fatalf("status = %+v", status)
	}

	resp, err = http.Get(base + "/api/templates")
	if err != nil {
		t.Fatalf("GET /api/templates: %v", err)
	}
	var templates map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&templates); err != nil {
		t.Fatalf("decode templates: %v", err)
	}
	_ = resp.Body.Close()
	if len(templates["templates"]) != 1 || templates["templates"][0] != "t2v" {
		t.Fatalf("templates = %+v", templates)
	}

	id, err := d.StartGeneration(ctx, generate.OpTextToVideo, generate.Params{Prompt: "a fox"})
	if err != nil {
		t.Fatalf("StartGeneration: %v", err)
	}
	waitForState(t, d, id, jobs.StateFinished)

	resp, err = http.Get(base + "/api/jobs/" + id)
	if err != nil {
		t.Fatalf("GET /api/jobs/{id}: %v", err)
	}
	var view daemon.JobView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	_ = resp.Body.Close()
	if view.ID != id || view.State != jobs.StateFinished {
		t.Fatalf("job view = %+v", view)
	}

	// Subscribing after completion replays the full stream and closes.
	wsURL := "ws://" + d.APIAddr() + "/api/jobs/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	var sawTerminal bool
	for {
		var update jobs.Update
		if err := conn.ReadJSON(&update); err != nil {
			break
		}
		if update.State == jobs.StateFinished {
			sawTerminal = true
		}
	}
	if !sawTerminal {
		t.Fatal("event stream replay missing terminal update")
	}

	resp, err = http.Get(base + "/api/jobs/nope")
	if err != nil {
		t.Fatalf("GET unknown job: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", resp.StatusCode)
	}
}

func TestDaemonGenerateEndpointStagesUploads(t *testing.T) {
	engine := fakeEngine(t)
	cfg := testConfig(t, strings.TrimPrefix(engine.URL, "http://"))

	d, err := daemon.New(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	body := &strings.Builder{}
	form := multipart.NewWriter(body)
	_ = form.WriteField("operation", generate.OpTextToVideo)
	_ = form.WriteField("prompt", "a fox")
	part, err := form.CreateFormFile("image", "in.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	contentType := form.FormDataContentType()
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	resp, err := http.Post("http://"+d.APIAddr()+"/api/generate", contentType, strings.NewReader(body.String()))
	if err != nil {
		t.Fatalf("POST /api/generate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	waitForState(t, d, accepted.JobID, jobs.StateFinished)

	entries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "_in.png") {
		t.Fatalf("staged files = %v", entries)
	}
}
