// Package ingest copies the IGDB catalogue into the local store, one
// resource kind after another.
package ingest

import (
	"time"

	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

// Run statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Counts tracks one resource kind within a run.
type Counts struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
	Batches  int `json:"batches"`
}

// Run records one ingestion pass.
type Run struct {
	ID         string                          `json:"id"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt *time.Time                      `json:"finished_at,omitempty"`
	Status     string                          `json:"status"` // RUNNING, COMPLETED, FAILED
	Kinds      []catalog.ResourceKind          `json:"kinds"`
	Counts     map[catalog.ResourceKind]Counts `json:"counts"`
	Error      string                          `json:"error,omitempty"`
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Total returns the number of records upserted across all kinds.
func (r *Run) Total() int {
	total := 0
	for _, c := range r.Counts {
		total += c.Upserted
	}
	return total
}
