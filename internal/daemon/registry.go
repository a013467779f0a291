package daemon

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/jobs"
)

// maxBufferedUpdates bounds per-job replay history. Long polls emit one
// update per tick, so a generous cap still keeps memory flat.
const maxBufferedUpdates = 512

// JobView is a point-in-time snapshot of a tracked job.
type JobView struct {
	ID        string     `json:"id"`
	Operation string     `json:"operation"`
	Template  string     `json:"template"`
	Server    string     `json:"server"`
	State     jobs.State `json:"state"`
	Artifact  string     `json:"artifact,omitempty"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type trackedJob struct {
	view    JobView
	updates []jobs.Update
	subs    map[chan jobs.Update]struct{}
	done    bool
}

// Registry tracks every job the daemon has started this process, keyed by a
// correlation id handed back to API callers at submission time.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*trackedJob
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*trackedJob)}
}

// Create registers a new job and returns its correlation id.
func (r *Registry) Create(operation, template, server string) string {
	id := uuid.NewString()
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &trackedJob{
		view: JobView{
			ID:        id,
			Operation: operation,
			Template:  template,
			Server:    server,
			State:     jobs.StateCreated,
			CreatedAt: now,
			UpdatedAt: now,
		},
		subs: make(map[chan jobs.Update]struct{}),
	}
	return id
}

// Apply records a progress update and fans it out to subscribers.
func (r *Registry) Apply(id string, update jobs.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.done {
		return
	}

	job.view.State = update.State
	job.view.Message = update.Message
	if update.Artifact != "" {
		job.view.Artifact = update.Artifact
	}
	job.view.UpdatedAt = time.Now().UTC()

	if len(job.updates) < maxBufferedUpdates {
		job.updates = append(job.updates, update)
	}
	for ch := range job.subs {
		select {
		case ch <- update:
		default:
			// Slow consumer; it still has the snapshot to fall back on.
		}
	}
}

// Finish marks the job's update stream complete and closes subscriber
// channels. Apply after Finish is a no-op.
func (r *Registry) Finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.done {
		return
	}
	job.done = true
	for ch := range job.subs {
		close(ch)
	}
	job.subs = make(map[chan jobs.Update]struct{})
}

// Get returns a snapshot of one job.
func (r *Registry) Get(id string) (JobView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return JobView{}, false
	}
	return job.view, true
}

// List returns snapshots of every tracked job, newest first.
func (r *Registry) List() []JobView {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]JobView, 0, len(r.jobs))
	for _, job := range r.jobs {
		views = append(views, job.view)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID > views[j].ID
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}

// Subscribe returns already-emitted updates for replay plus a live channel
// for the rest of the stream. The channel is closed when the job finishes;
// for an already-finished job it comes back closed with the full replay.
// Callers must invoke cancel when done listening.
func (r *Registry) Subscribe(id string) (replay []jobs.Update, live <-chan jobs.Update, cancel func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, exists := r.jobs[id]
	if !exists {
		return nil, nil, nil, false
	}

	replay = append([]jobs.Update(nil), job.updates...)
	ch := make(chan jobs.Update, 32)
	if job.done {
		close(ch)
		return replay, ch, func() {}, true
	}

	job.subs[ch] = struct{}{}
	cancel = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, still := job.subs[ch]; still {
			delete(job.subs, ch)
			close(ch)
		}
	}
	return replay, ch, cancel, true
}
