package httptransport

import "fieldcomply/internal/compliance/models"

// ListResponse wraps collection reads.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// QueuedResponse reports how many recompute jobs a mutation queued.
type QueuedResponse struct {
	Queued int `json:"queued"`
}

type DocumentTypeResponse struct {
	DocumentType models.DocumentType `json:"document_type"`
	Queued       int                 `json:"queued"`
}

type InvalidateResponse struct {
	Category string   `json:"category"`
	Evicted  []string `json:"evicted"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
