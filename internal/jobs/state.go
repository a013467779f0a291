package jobs

import "genstudio/internal/workflow"

// State is the lifecycle of one job. Jobs are not persisted; a State lives
// only as long as the request that created it.
type State string

const (
	StateCreated   State = "created"
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateFinished  State = "finished"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether the state ends the job.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

// Update is one element of a job's progress sequence. Artifact is empty on
// interim updates and holds the local download path on the success update.
type Update struct {
	JobID    string `json:"job_id"`
	State    State  `json:"state"`
	Artifact string `json:"artifact,omitempty"`
	Message  string `json:"message"`
}

// FileInput names a local file to upload into a node parameter.
type FileInput struct {
	NodeID string
	Param  string
	Path   string
}

// Request describes one generation job.
type Request struct {
	Operation   string
	Server      string
	Template    string
	Assignments []workflow.Assignment
	Files       []FileInput
}
