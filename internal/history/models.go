package history

import "time"

// Generation is one recorded job run.
type Generation struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Operation string    `json:"operation"`
	Template  string    `json:"template"`
	Server    string    `json:"server"`
	State     string    `json:"state"`
	Artifact  string    `json:"artifact,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
