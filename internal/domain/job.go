package domain

import "time"

// JobStatus represents the status of a bulk translation job.
// Values include JobStatusPending, JobStatusInProgress, JobStatusCompleted,
// and JobStatusError.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether the status is final. Terminal jobs are never
// resumed or retried; they only wait for the retention sweep.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// TranslationJob tracks the progress of one bulk translation run. Job records
// live in process memory only and are lost on restart; callers must treat
// status as best-effort, not durable.
type TranslationJob struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurant_id"`
	Total        int        `json:"total"`
	Completed    int        `json:"completed"`
	Status       JobStatus  `json:"status"`
	Errors       []string   `json:"errors,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a copy safe to hand to readers while the owning task keeps
// mutating the original.
func (j *TranslationJob) Clone() *TranslationJob {
	c := *j
	if j.Errors != nil {
		c.Errors = make([]string, len(j.Errors))
		copy(c.Errors, j.Errors)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
