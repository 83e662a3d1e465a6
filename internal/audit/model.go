package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a single audit log entry: one row per mutating call against the
// master's node/dataset/recording API.
type Event struct {
	ID         uuid.UUID       `json:"id"`       // DB primary key
	EventID    uuid.UUID       `json:"event_id"` // idempotency key
	Action     string          `json:"action"`
	TargetType string          `json:"target_type,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	Result     string          `json:"result"` // "success" or "error"
	Reason     string          `json:"reason,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Filter narrows QueryEvents; zero values are unfiltered.
type Filter struct {
	Result string
	Limit  int
	Cursor string // ID-based cursor, exclusive
}

// Service writes and queries audit events against Postgres, spooling to
// disk on write failure.
type Service struct {
	DB *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}
