package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"genstudio/internal/services"
	"genstudio/internal/workflow"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client defines the engine operations the job runner depends on.
type Client interface {
	Address() string
	UploadImage(ctx context.Context, localPath string) (string, error)
	SubmitPrompt(ctx context.Context, graph workflow.Graph, clientID string) (string, error)
	History(ctx context.Context, promptID string) (*HistoryEntry, bool, error)
	Download(ctx context.Context, ref FileRef, destPath string) error
}

// Timeouts bounds the individual engine calls. Polling cadence is the job
// runner's concern; these only cap single requests.
type Timeouts struct {
	Upload   time.Duration
	Submit   time.Duration
	Status   time.Duration
	Download time.Duration
}

// DefaultTimeouts mirror the engine operators' deployment settings.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Upload:   60 * time.Second,
		Submit:   10 * time.Second,
		Status:   10 * time.Second,
		Download: 60 * time.Second,
	}
}

// Option configures the HTTP client.
type Option func(*httpClient)

// WithTimeouts overrides the default per-call timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(c *httpClient) {
		if t.Upload > 0 {
			c.timeouts.Upload = t.Upload
		}
		if t.Submit > 0 {
			c.timeouts.Submit = t.Submit
		}
		if t.Status > 0 {
			c.timeouts.Status = t.Status
		}
		if t.Download > 0 {
			c.timeouts.Download = t.Download
		}
	}
}

type httpClient struct {
	address  string
	baseURL  string
	client   HTTPDoer
	timeouts Timeouts
}

// New constructs an engine client for the given host:port address. A nil doer
// falls back to a plain http.Client; per-call deadlines come from Timeouts,
// not the transport.
func New(address string, doer HTTPDoer, opts ...Option) Client {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if doer == nil {
		doer = &http.Client{}
	}
	c := &httpClient{
		address:  address,
		baseURL:  "http://" + address,
		client:   doer,
		timeouts: DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Address() string {
	return c.address
}

// UploadImage pushes a local file to the engine and returns the
// engine-assigned filename. No retry: the engine may already hold a partial
// or duplicate asset after a failed attempt, so a failure aborts the job.
func (c *httpClient) UploadImage(ctx context.Context, localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", services.Wrap(services.ErrMissingInput, "comfy", "upload", localPath, err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "open "+localPath, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filepath.Base(localPath))
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "build form", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "read "+localPath, err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "finalize form", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Upload)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload/image", &body)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "post "+c.address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", httpStatusDetail(resp), nil)
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "decode response", err)
	}
	if payload.Name == "" {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload", "engine returned no filename", nil)
	}
	return payload.Name, nil
}

// SubmitPrompt posts the patched graph and returns the engine job id.
func (c *httpClient) SubmitPrompt(ctx context.Context, graph workflow.Graph, clientID string) (string, error) {
	payload := struct {
		Prompt   workflow.Graph `json:"prompt"`
		ClientID string         `json:"client_id"`
	}{Prompt: graph, ClientID: clientID}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrSubmission, "comfy", "submit", "encode prompt", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Submit)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, "/prompt", bytes.NewReader(data))
	if err != nil {
		return "", services.Wrap(services.ErrSubmission, "comfy", "submit", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrConnection, "comfy", "submit", "post "+c.address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", services.Wrap(services.ErrSubmission, "comfy", "submit", httpStatusDetail(resp), nil)
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", services.Wrap(services.ErrSubmission, "comfy", "submit", "decode response", err)
	}
	if result.PromptID == "" {
		return "", services.Wrap(services.ErrSubmission, "comfy", "submit", "engine returned no prompt id", nil)
	}
	return result.PromptID, nil
}

// History fetches the engine's record for promptID. The second return value
// is false while the job has not completed; the caller keeps polling.
func (c *httpClient) History(ctx context.Context, promptID string) (*HistoryEntry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Status)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build history request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("history returned %d", resp.StatusCode)
	}

	var history map[string]*HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, false, fmt.Errorf("decode history: %w", err)
	}
	entry, ok := history[promptID]
	if !ok || entry == nil {
		return nil, false, nil
	}
	return entry, true, nil
}

// Download streams the referenced artifact to destPath.
func (c *httpClient) Download(ctx context.Context, ref FileRef, destPath string) error {
	query := url.Values{}
	query.Set("filename", ref.Filename)
	query.Set("subfolder", ref.Subfolder)
	query.Set("type", ref.Type)

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Download)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/view?"+query.Encode(), nil)
	if err != nil {
		return services.Wrap(services.ErrDownload, "comfy", "download", "build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrDownload, "comfy", "download", ref.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrDownload, "comfy", "download", httpStatusDetail(resp), nil)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrDownload, "comfy", "download", "create output directory", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrDownload, "comfy", "download", "create "+destPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(destPath)
		return services.Wrap(services.ErrDownload, "comfy", "download", "write "+destPath, err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrDownload, "comfy", "download", "close "+destPath, err)
	}
	return nil
}

func (c *httpClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	// The engine misbehaves with kept-alive connections across long jobs.
	req.Header.Set("Connection", "close")
	req.Close = true
	return req, nil
}

func httpStatusDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return fmt.Sprintf("engine returned %d", resp.StatusCode)
	}
	return fmt.Sprintf("engine returned %d: %s", resp.StatusCode, detail)
}

var _ Client = (*httpClient)(nil)
