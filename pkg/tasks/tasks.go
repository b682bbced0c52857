// Package tasks defines the access events the gateway emits after each request.
package tasks

import (
	"context"
	"time"
)

// Event kinds.
const (
	KindFileFetch        = "file_fetch"
	KindDocumentGenerate = "document_generate"
	KindQuery            = "query"
)

// OutcomeOK marks a successful request; failures carry the error category instead.
const OutcomeOK = "ok"

// AccessEvent describes one handled gateway request.
type AccessEvent struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	DBHost     string    `json:"db_host"`
	DBPath     string    `json:"db_path"`
	Target     string    `json:"target"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers access events to a sink. Publishing is best-effort.
type Publisher interface {
	Publish(ctx context.Context, event AccessEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AccessEvent) error { return nil }
