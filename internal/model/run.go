package model

import "time"

// RunStatus is the state of a recorded scrape run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run records one invocation of the scrape pipeline.
type Run struct {
	ID         string     `json:"id"`
	LinksFile  string     `json:"links_file"`
	Output     string     `json:"output"`
	Status     RunStatus  `json:"status"`
	Total      int        `json:"total"`
	Skipped    int        `json:"skipped"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
