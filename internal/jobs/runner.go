package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/config"
	"genstudio/internal/logging"
	"genstudio/internal/services"
	"genstudio/internal/services/comfy"
	"genstudio/internal/workflow"
)

// ClientFactory builds an engine client for a server address. Injected so
// tests can substitute fakes per address.
type ClientFactory func(address string) comfy.Client

// Options tunes the runner's polling and output behaviour.
type Options struct {
	// PollInterval is the wait between history polls.
	PollInterval time.Duration
	// PollDeadline bounds total polling time; zero polls until completion
	// or caller cancellation.
	PollDeadline time.Duration
	// OutputDir receives downloaded artifacts.
	OutputDir string
}

// OptionsFromConfig derives runner options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PollInterval: time.Duration(cfg.Jobs.PollInterval) * time.Second,
		PollDeadline: time.Duration(cfg.Jobs.PollDeadline) * time.Second,
		OutputDir:    cfg.Paths.OutputDir,
	}
}

// Runner executes jobs. It holds no per-job state: every Run patches its own
// template clone and names its own output file, so concurrent runs share
// nothing but the read-only template store.
type Runner struct {
	store   *workflow.Store
	clients ClientFactory
	opts    Options
	logger  *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(store *workflow.Store, clients ClientFactory, opts Options, logger *slog.Logger) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	return &Runner{
		store:   store,
		clients: clients,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "job-runner"),
	}
}

// Run starts the job and returns its progress sequence. The channel closes
// after the terminal update. Cancelling ctx stops the job promptly, including
// mid-poll; an abandoned consumer therefore must cancel rather than just stop
// receiving.
func (r *Runner) Run(ctx context.Context, req Request) <-chan Update {
	updates := make(chan Update, 8)
	go r.run(ctx, req, updates)
	return updates
}

func (r *Runner) run(ctx context.Context, req Request, updates chan<- Update) {
	defer close(updates)

	jobID := uuid.NewString()
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithOperation(ctx, req.Operation)
	ctx = services.WithServer(ctx, req.Server)
	logger := logging.WithContext(ctx, r.logger)

	emit := func(state State, artifact, message string) bool {
		select {
		case updates <- Update{JobID: jobID, State: state, Artifact: artifact, Message: message}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(state State, err error) {
		logger.Error("job failed",
			logging.String(logging.FieldState, string(state)),
			logging.Error(err),
		)
		emit(state, "", fmt.Sprintf("Error: %v", err))
	}

	template, err := r.store.Get(req.Template)
	if err != nil {
		fail(StateFailed, err)
		return
	}

	client := r.clients(req.Server)

	// Upload phase. Sequential, no retry; the first failure aborts the job.
	if len(req.Files) > 0 && !emit(StateCreated, "", "Uploading files...") {
		return
	}
	assignments := append([]workflow.Assignment{}, req.Assignments...)
	for _, file := range req.Files {
		remoteName, err := client.UploadImage(ctx, file.Path)
		if err != nil {
			fail(StateFailed, err)
			return
		}
		logger.Debug("uploaded input",
			logging.String("node", file.NodeID),
			logging.String("param", file.Param),
			logging.String("remote_name", remoteName),
		)
		assignments = append(assignments, workflow.Assign(file.NodeID, file.Param, remoteName))
	}

	if !emit(StateCreated, "", "Configuring workflow...") {
		return
	}
	patched, err := workflow.Patch(template, assignments)
	if err != nil {
		fail(StateFailed, err)
		return
	}
	workflow.RandomizeSeeds(patched)

	if !emit(StateCreated, "", "Sending job...") {
		return
	}
	promptID, err := client.SubmitPrompt(ctx, patched, jobID)
	if err != nil {
		fail(StateFailed, err)
		return
	}
	logger.Info("job submitted", logging.String("prompt_id", promptID))
	if !emit(StateSubmitted, "", "Job submitted.") {
		return
	}

	entry, ok := r.poll(ctx, client, promptID, emit)
	if !ok {
		return
	}

	if !emit(StatePolling, "", "Job finished! Downloading...") {
		return
	}

	ref, found := entry.SelectArtifact()
	if !found {
		logger.Warn("job produced no retrievable output", logging.String("prompt_id", promptID))
		emit(StateFinished, "", "Finished, but no output found.")
		return
	}

	destPath := filepath.Join(r.opts.OutputDir, fmt.Sprintf("comfy_%s_%s", jobID, filepath.Base(ref.Filename)))
	if err := client.Download(ctx, ref, destPath); err != nil {
		fail(StateFailed, err)
		return
	}

	logger.Info("artifact downloaded",
		logging.String("prompt_id", promptID),
		logging.String("artifact", destPath),
	)
	emit(StateFinished, destPath, "Success: generation complete.")
}

// poll waits for the engine's history to contain promptID, emitting an
// elapsed-time update each tick. Transient poll failures are swallowed and
// retried on the next tick; the loop ends only on completion, caller
// cancellation, or the configured deadline.
func (r *Runner) poll(ctx context.Context, client comfy.Client, promptID string, emit func(State, string, string) bool) (*comfy.HistoryEntry, bool) {
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()

	var deadline <-chan time.Time
	if r.opts.PollDeadline > 0 {
		timer := time.NewTimer(r.opts.PollDeadline)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline:
			logger.Error("polling deadline exceeded",
				logging.String("prompt_id", promptID),
				logging.Duration("elapsed", time.Since(start)),
			)
			emit(StateTimedOut, "", fmt.Sprintf("Error: job still running after %s", r.opts.PollDeadline))
			return nil, false
		case <-ticker.C:
		}

		elapsed := int(time.Since(start).Seconds())
		if !emit(StatePolling, "", fmt.Sprintf("Processing... (%ds)", elapsed)) {
			return nil, false
		}

		entry, done, err := client.History(ctx, promptID)
		if err != nil {
			// Transient noise; the engine is trusted to answer eventually.
			logger.Debug("history poll failed",
				logging.String("prompt_id", promptID),
				logging.Error(err),
			)
			continue
		}
		if done {
			return entry, true
		}
	}
}
