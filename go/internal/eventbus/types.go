// Package eventbus implements the outbox + relay that publishes
// committed domain events to NATS so other bounded contexts can react
// to draft lifecycle events asynchronously, at-least-once. Grounded on
// the teacher's internal/draft/outbox package; adapted from its
// sqlc/database-sql plumbing to this module's pgx stack.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names the draft lifecycle events a relay publishes.
type EventType string

const (
	EventDraftStarted   EventType = "draft_started"
	EventPickStarted    EventType = "pick_started"
	EventPickMade       EventType = "pick_made"
	EventDraftPaused    EventType = "draft_paused"
	EventDraftResumed   EventType = "draft_resumed"
	EventDraftCompleted EventType = "draft_completed"
	EventDraftCancelled EventType = "draft_cancelled"
)

// OutboxEvent mirrors one row of the draft_outbox table.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	DraftID   uuid.UUID       `json:"draft_id"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}
