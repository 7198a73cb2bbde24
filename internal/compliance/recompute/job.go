// Package recompute queues compliance recomputation jobs and runs them on a
// worker pool, so requirement changes that affect many technicians do not
// block the request that made them.
package recompute

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "fieldcomply/pkg/domain-errors"
)

// Kind names the entity a job recomputes.
type Kind string

const (
	KindTechnician Kind = "technician"
	KindCompany    Kind = "company"
)

func (k Kind) IsValid() bool {
	return k == KindTechnician || k == KindCompany
}

// Job asks for one entity to be recomputed. Jobs are idempotent, so duplicate
// delivery is harmless.
type Job struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	EntityID uuid.UUID `json:"entity_id"`
	Reason   string    `json:"reason,omitempty"`
	// SyncPending inserts PENDING placeholders for newly required documents
	// before recomputing.
	SyncPending bool      `json:"sync_pending,omitempty"`
	Attempt     int       `json:"attempt"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NewJob builds a first-attempt job.
func NewJob(kind Kind, entityID uuid.UUID, reason string, now time.Time) Job {
	return Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		EntityID:   entityID,
		Reason:     reason,
		EnqueuedAt: now,
	}
}

func (j Job) Validate() error {
	if !j.Kind.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown job kind %q", j.Kind))
	}
	if j.EntityID == uuid.Nil {
		return dErrors.New(dErrors.CodeInvalidInput, "job entity id is required")
	}
	return nil
}

// WithSyncPending marks the job as following a requirement change.
func (j Job) WithSyncPending() Job {
	j.SyncPending = true
	return j
}

// Retry returns the job for its next attempt.
func (j Job) Retry() Job {
	j.Attempt++
	return j
}

func encode(j Job) ([]byte, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return b, nil
}

func decode(b []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}
