package model

import "time"

// Initiative is the top-level tracked unit of work.
type Initiative struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ValueStream string    `json:"valueStream,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InitiativeFilter specifies criteria for listing initiatives.
type InitiativeFilter struct {
	ValueStream string
	Search      string // case-insensitive match on name or description
	Limit       int
	Offset      int
}
