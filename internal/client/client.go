// Package client provides a transport-agnostic interface for the lgates
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

// GatesClient is the interface the lgd CLI commands use to talk to the
// governance server.
type GatesClient interface {
	// Initiatives
	CreateInitiative(ctx context.Context, req *CreateInitiativeRequest) (*model.Initiative, error)
	GetInitiative(ctx context.Context, id string) (*model.Initiative, error)
	ListInitiatives(ctx context.Context, req *ListInitiativesRequest) (*ListInitiativesResponse, error)
	DeleteInitiative(ctx context.Context, id string) error
	GetEvents(ctx context.Context, initiativeID string) ([]*model.Event, error)

	// Gate forms
	ListForms(ctx context.Context, initiativeID string) ([]workflow.View, error)
	GetForm(ctx context.Context, initiativeID string, gate model.Gate) (*workflow.View, error)
	SaveForm(ctx context.Context, initiativeID string, gate model.Gate, req *SaveFormRequest) (*workflow.View, error)
	Approve(ctx context.Context, initiativeID string, gate model.Gate, req *ReviewRequest) (*workflow.View, error)
	Reject(ctx context.Context, initiativeID string, gate model.Gate, req *ReviewRequest) (*workflow.View, error)
	RequestChange(ctx context.Context, initiativeID string, gate model.Gate, req *ReviewRequest) (*workflow.View, error)
	GetRequirements(ctx context.Context, gate model.Gate) (*model.GateRequirements, error)

	// Status
	GetStatus(ctx context.Context, initiativeID string) (*model.InitiativeStatus, error)
	SetStatus(ctx context.Context, initiativeID string, patch model.StatusPatch) (*model.InitiativeStatus, error)

	// Roles
	MyRole(ctx context.Context) (*model.UserRole, error)
	SetUserRole(ctx context.Context, userID string, req *SetRoleRequest) (*model.UserRole, error)
	ListUsers(ctx context.Context) ([]*model.UserRole, error)

	// Config
	SetConfig(ctx context.Context, key string, value json.RawMessage) (*model.Config, error)
	GetConfig(ctx context.Context, key string) (*model.Config, error)
	ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error)
	DeleteConfig(ctx context.Context, key string) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateInitiativeRequest carries the fields for creating an initiative. An
// empty ID lets the server generate one.
type CreateInitiativeRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ValueStream string `json:"valueStream,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

// ListInitiativesRequest carries the filter parameters for listing initiatives.
type ListInitiativesRequest struct {
	ValueStream string
	Search      string
	Limit       int
	Offset      int
}

// ListInitiativesResponse is one page of initiatives plus the unpaged total.
type ListInitiativesResponse struct {
	Initiatives []*model.Initiative `json:"initiatives"`
	Total       int                 `json:"total"`
}

// SaveFormRequest is the body of a form save. Status selects the action:
// empty or draft saves, submitted submits, change_requested reopens.
type SaveFormRequest struct {
	FormData            json.RawMessage  `json:"formData,omitempty"`
	Status              model.FormStatus `json:"status,omitempty"`
	ChangeRequestReason string           `json:"changeRequestReason,omitempty"`
	Version             int64            `json:"version"`
}

// ReviewRequest is the body of approve, reject and request-change. A nil
// Version skips the optimistic concurrency check.
type ReviewRequest struct {
	Reason  string `json:"reason,omitempty"`
	Version *int64 `json:"version,omitempty"`
}

// SetRoleRequest assigns a role to a user.
type SetRoleRequest struct {
	Role        model.Role `json:"role"`
	ValueStream string     `json:"valueStream,omitempty"`
}
