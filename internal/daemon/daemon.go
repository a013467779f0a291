package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"genstudio/internal/config"
	"genstudio/internal/dispatch"
	"genstudio/internal/generate"
	"genstudio/internal/history"
	"genstudio/internal/jobs"
	"genstudio/internal/logging"
	"genstudio/internal/notifications"
	"genstudio/internal/preflight"
	"genstudio/internal/services/comfy"
	"genstudio/internal/workflow"
)

// Daemon coordinates the job pool, template store, and HTTP API, and
// enforces single-instance execution through a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *workflow.Store
	pool      *dispatch.Pool
	generator *generate.Service
	registry  *Registry
	ledger    *history.Store
	notifier  notifications.Service

	api *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool   `json:"running"`
	Templates     int    `json:"templates"`
	TrackedJobs   int    `json:"tracked_jobs"`
	HistoryDBPath string `json:"history_db_path,omitempty"`
	LockFilePath  string `json:"lock_file_path"`
	APIBind       string `json:"api_bind"`
}

// New constructs a daemon with initialized dependencies. The history ledger
// is optional; pass nil when persistence is disabled.
func New(cfg *config.Config, logger *slog.Logger, ledger *history.Store) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := workflow.LoadStore(cfg.Paths.WorkflowsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load workflow templates: %w", err)
	}

	timeouts := comfy.Timeouts{
		Upload:   time.Duration(cfg.Jobs.UploadTimeout) * time.Second,
		Submit:   time.Duration(cfg.Jobs.SubmitTimeout) * time.Second,
		Status:   time.Duration(cfg.Jobs.SubmitTimeout) * time.Second,
		Download: time.Duration(cfg.Jobs.DownloadTimeout) * time.Second,
	}
	clients := func(address string) comfy.Client {
		return comfy.New(address, &http.Client{}, comfy.WithTimeouts(timeouts))
	}
	runner := jobs.NewRunner(store, clients, jobs.OptionsFromConfig(cfg), logger)
	pool := dispatch.NewPool(runner, dispatch.OptionsFromConfig(cfg), logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pool:     pool,
		registry: NewRegistry(),
		ledger:   ledger,
		notifier: notifications.NewService(cfg),
		lockPath: filepath.Join(cfg.Paths.LogDir, "genstudiod.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.generator = generate.NewService(pool, cfg, logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another genstudio daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	for _, result := range preflight.RunAll(d.ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("genstudio daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("templates", d.store.Len()),
	)
	return nil
}

// Stop shuts down the API, drains running jobs, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.api != nil {
		d.api.stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Close()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("genstudio daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.ledger != nil {
		return d.ledger.Close()
	}
	return nil
}

// StartGeneration dispatches an operation and returns the correlation id its
// progress is tracked under. The returned id is valid immediately for
// lookups and event subscriptions.
func (d *Daemon) StartGeneration(ctx context.Context, op string, params generate.Params) (string, error) {
	updates, err := d.generator.Dispatch(d.jobContext(), op, params)
	if err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) {
			d.notifyAsync(func(nctx context.Context) error {
				return d.notifier.NotifyQueueRejected(nctx, op)
			})
		}
		return "", err
	}

	template, server := "", ""
	if desc, ok := generate.Describe(op); ok {
		template = desc.Template
		server, _ = d.cfg.ServerFor(desc.Role)
	}

	id := d.registry.Create(op, template, server)
	if d.ledger != nil {
		if _, err := d.ledger.RecordStart(ctx, id, op, template, server); err != nil {
			d.logger.Warn("history record failed", logging.Error(err))
		}
	}

	d.wg.Add(1)
	go d.track(id, op, updates)
	return id, nil
}

// track consumes a job's update stream, keeping the registry, ledger, and
// notifier in sync.
func (d *Daemon) track(id, op string, updates <-chan jobs.Update) {
	defer d.wg.Done()
	defer d.registry.Finish(id)

	var last jobs.Update
	for update := range updates {
		last = update
		d.registry.Apply(id, update)
	}

	if !last.State.Terminal() {
		// The stream ended without a terminal update, so the job was
		// cancelled mid-flight.
		last = jobs.Update{State: jobs.StateFailed, Message: "Error: job cancelled"}
		d.registry.Apply(id, last)
	}

	if d.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.ledger.RecordResult(ctx, id, string(last.State), last.Artifact, last.Message); err != nil {
			d.logger.Warn("history result failed", logging.Error(err))
		}
		cancel()
	}

	switch last.State {
	case jobs.StateFinished:
		d.notifyAsync(func(nctx context.Context) error {
			return d.notifier.NotifyGenerationCompleted(nctx, op, last.Artifact)
		})
	case jobs.StateFailed, jobs.StateTimedOut:
		d.notifyAsync(func(nctx context.Context) error {
			return d.notifier.NotifyGenerationFailed(nctx, op, errors.New(strings.TrimPrefix(last.Message, "Error: ")))
		})
	}
}

func (d *Daemon) notifyAsync(send func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			d.logger.Warn("notification failed", logging.Error(err))
		}
	}()
}

// jobContext returns the context jobs run under. Jobs outlive the API
// request that started them and end only with the daemon itself.
func (d *Daemon) jobContext() context.Context {
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

// APIAddr returns the bound API address, or empty when the API is disabled
// or not yet started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Templates lists the loaded workflow template names.
func (d *Daemon) Templates() []string {
	return d.store.Names()
}

// Jobs lists tracked jobs, newest first.
func (d *Daemon) Jobs() []JobView {
	return d.registry.List()
}

// Job returns one tracked job's snapshot.
func (d *Daemon) Job(id string) (JobView, bool) {
	return d.registry.Get(id)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Templates:    d.store.Len(),
		TrackedJobs:  len(d.registry.List()),
		LockFilePath: d.lockPath,
		APIBind:      d.cfg.Paths.APIBind,
	}
	if d.ledger != nil {
		status.HistoryDBPath = d.ledger.Path()
	}
	return status
}
