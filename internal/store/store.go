package store

import (
	"context"

	"github.com/alfredjeanlab/lgates/internal/model"
)

// Store defines the persistence interface for the governance service.
// Lookups of absent rows return sql.ErrNoRows.
type Store interface {
	// Initiatives
	CreateInitiative(ctx context.Context, in *model.Initiative) error
	GetInitiative(ctx context.Context, id string) (*model.Initiative, error)
	ListInitiatives(ctx context.Context, filter model.InitiativeFilter) ([]*model.Initiative, int, error) // returns initiatives, total count, error
	DeleteInitiative(ctx context.Context, id string) error

	// Gate forms
	EnsureGateForm(ctx context.Context, initiativeID string, gate model.Gate) error // inserts a not_started row if absent
	GetGateForm(ctx context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error)
	LockGateForm(ctx context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) // row lock for the enclosing transaction
	ListGateForms(ctx context.Context, initiativeID string) ([]*model.GateForm, error)
	UpdateGateForm(ctx context.Context, form *model.GateForm, expectedVersion int64) error // ErrVersionConflict on mismatch

	// Initiative status
	GetInitiativeStatus(ctx context.Context, initiativeID string) (*model.InitiativeStatus, error)
	SetInitiativeStatus(ctx context.Context, status *model.InitiativeStatus) error

	// User roles
	GetUserRole(ctx context.Context, userID string) (*model.UserRole, error)
	EnsureUserRole(ctx context.Context, userID string) (*model.UserRole, error) // first user ever becomes control_tower, later ones slt
	SetUserRole(ctx context.Context, ur *model.UserRole) error
	ListUserRoles(ctx context.Context) ([]*model.UserRole, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, initiativeID string) ([]*model.Event, error)

	// Configs
	SetConfig(ctx context.Context, config *model.Config) error
	GetConfig(ctx context.Context, key string) (*model.Config, error)
	ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error)
	ListAllConfigs(ctx context.Context) ([]*model.Config, error)
	DeleteConfig(ctx context.Context, key string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
