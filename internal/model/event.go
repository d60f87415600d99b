package model

import (
	"encoding/json"
	"time"
)

// Event is a persisted audit record, mirroring what is published to NATS.
type Event struct {
	ID           int64           `json:"id"`
	Topic        string          `json:"topic"`
	InitiativeID string          `json:"initiativeId,omitempty"`
	Gate         Gate            `json:"gate,omitempty"`
	Actor        string          `json:"actor,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"createdAt"`
}
