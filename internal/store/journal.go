// Package store defines the dispatch journal: a durable record of every
// reply cycle's outcome, for operator inspection via `replygate journal`.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dispatch outcome statuses.
const (
	StatusOK               = "ok"
	StatusGenerationFailed = "generation_failed"
	StatusDeliveryFailed   = "delivery_failed"
)

// DispatchRecord is one journal row.
type DispatchRecord struct {
	ID           uuid.UUID `json:"id"`
	Channel      string    `json:"channel"`
	PartnerID    string    `json:"partner_id"`
	SessionKey   string    `json:"session_key"`
	BatchSize    int       `json:"batch_size"`
	Status       string    `json:"status"`
	ReplyPreview string    `json:"reply_preview,omitempty"`
	Error        string    `json:"error,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Journal records dispatch outcomes. Implementations: sqlite (standalone)
// and pg (managed).
type Journal interface {
	Record(ctx context.Context, rec DispatchRecord) error
	Recent(ctx context.Context, limit int) ([]DispatchRecord, error)
	Close() error
}
