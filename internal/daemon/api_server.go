package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"genstudio/internal/config"
	"genstudio/internal/dispatch"
	"genstudio/internal/generate"
	"genstudio/internal/logging"
	"genstudio/internal/services"
)

// maxUploadBytes caps a single multipart generate request. Videos dominate
// the uploads, so the ceiling is generous.
const maxUploadBytes = 2 << 30

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The browser front end is served from a different origin than
		// the API bind address.
		return true
	},
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/templates", srv.handleTemplates)
	mux.HandleFunc("/api/operations", srv.handleOperations)
	mux.HandleFunc("/api/generate", srv.handleGenerate)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJob)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound address, useful when the bind port was 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"templates": s.daemon.Templates()})
}

func (s *apiServer) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	type operation struct {
		Name    string   `json:"name"`
		Summary string   `json:"summary"`
		Prompt  bool     `json:"prompt"`
		Media   []string `json:"media,omitempty"`
		Extra   []string `json:"extra,omitempty"`
	}
	descriptors := generate.Descriptors()
	ops := make([]operation, 0, len(descriptors))
	for _, d := range descriptors {
		ops = append(ops, operation{
			Name:    d.Name,
			Summary: d.Summary,
			Prompt:  d.Prompt,
			Media:   d.Media,
			Extra:   d.Extra,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string][]operation{"operations": ops})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]JobView{"jobs": s.daemon.Jobs()})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id, ok := strings.CutSuffix(rest, "/events"); ok {
		s.handleJobEvents(w, r, strings.TrimSuffix(id, "/"))
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	view, ok := s.daemon.Job(rest)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleJobEvents upgrades to a websocket and streams the job's progress
// updates: the full replay first, then live updates until the job's stream
// ends or the peer goes away.
func (s *apiServer) handleJobEvents(w http.ResponseWriter, r *http.Request, id string) {
	replay, live, cancel, ok := s.daemon.registry.Subscribe(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	defer cancel()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces close frames and pong responses.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeUpdate := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v) == nil
	}

	for _, update := range replay {
		if !writeUpdate(update) {
			return
		}
	}

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	for {
		select {
		case update, open := <-live:
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}
			if !writeUpdate(update) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

type generateResponse struct {
	JobID string `json:"job_id"`
}

// handleGenerate accepts a multipart form naming the operation, its text
// parameters, and its media files, stages the files to disk, and starts the
// job.
func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	op := strings.TrimSpace(r.FormValue("operation"))
	if op == "" {
		s.writeError(w, http.StatusBadRequest, "operation is required")
		return
	}

	params := generate.Params{
		Prompt:    r.FormValue("prompt"),
		Direction: strings.ToLower(strings.TrimSpace(r.FormValue("direction"))),
		Media:     make(map[string]string),
	}
	if raw := strings.TrimSpace(r.FormValue("pixels")); raw != "" {
		pixels, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid pixels value")
			return
		}
		params.Pixels = pixels
	}
	if raw := strings.TrimSpace(r.FormValue("strength")); raw != "" {
		strength, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid strength value")
			return
		}
		params.Strength = strength
	}

	for slot, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		staged, err := s.stageUpload(headers[0])
		if err != nil {
			s.log().Error("staging upload failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "stage uploaded file")
			return
		}
		params.Media[slot] = staged
	}

	id, err := s.daemon.StartGeneration(r.Context(), op, params)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrQueueFull):
			s.writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, services.ErrMissingInput), errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, generateResponse{JobID: id})
}

// stageUpload copies one uploaded file into the staging directory under a
// unique name, preserving the original extension for the engine's loaders.
func (s *apiServer) stageUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q: %w", header.Filename, err)
	}
	defer src.Close()

	stagingDir := s.daemon.cfg.Paths.StagingDir
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	base := filepath.Base(header.Filename)
	if base == "." || base == string(filepath.Separator) {
		base = "upload"
	}
	destPath := filepath.Join(stagingDir, uuid.NewString()+"_"+base)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return destPath, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
