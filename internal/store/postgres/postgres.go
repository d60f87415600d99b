// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateInitiative(ctx context.Context, in *model.Initiative) error {
	return queryCreateInitiative(ctx, s.db, in)
}

func (s *PostgresStore) GetInitiative(ctx context.Context, id string) (*model.Initiative, error) {
	return queryGetInitiative(ctx, s.db, id)
}

func (s *PostgresStore) ListInitiatives(ctx context.Context, filter model.InitiativeFilter) ([]*model.Initiative, int, error) {
	return queryListInitiatives(ctx, s.db, filter)
}

func (s *PostgresStore) DeleteInitiative(ctx context.Context, id string) error {
	return queryDeleteInitiative(ctx, s.db, id)
}

func (s *PostgresStore) EnsureGateForm(ctx context.Context, initiativeID string, gate model.Gate) error {
	return queryEnsureGateForm(ctx, s.db, initiativeID, gate)
}

func (s *PostgresStore) GetGateForm(ctx context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	return queryGetGateForm(ctx, s.db, initiativeID, gate)
}

func (s *PostgresStore) LockGateForm(ctx context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	return queryLockGateForm(ctx, s.db, initiativeID, gate)
}

func (s *PostgresStore) ListGateForms(ctx context.Context, initiativeID string) ([]*model.GateForm, error) {
	return queryListGateForms(ctx, s.db, initiativeID)
}

func (s *PostgresStore) UpdateGateForm(ctx context.Context, form *model.GateForm, expectedVersion int64) error {
	return queryUpdateGateForm(ctx, s.db, form, expectedVersion)
}

func (s *PostgresStore) GetInitiativeStatus(ctx context.Context, initiativeID string) (*model.InitiativeStatus, error) {
	return queryGetInitiativeStatus(ctx, s.db, initiativeID)
}

func (s *PostgresStore) SetInitiativeStatus(ctx context.Context, status *model.InitiativeStatus) error {
	return querySetInitiativeStatus(ctx, s.db, status)
}

func (s *PostgresStore) GetUserRole(ctx context.Context, userID string) (*model.UserRole, error) {
	return queryGetUserRole(ctx, s.db, userID)
}

func (s *PostgresStore) SetUserRole(ctx context.Context, ur *model.UserRole) error {
	return querySetUserRole(ctx, s.db, ur)
}

func (s *PostgresStore) ListUserRoles(ctx context.Context) ([]*model.UserRole, error) {
	return queryListUserRoles(ctx, s.db)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, initiativeID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, initiativeID)
}

func (s *PostgresStore) SetConfig(ctx context.Context, config *model.Config) error {
	return querySetConfig(ctx, s.db, config)
}

func (s *PostgresStore) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return queryGetConfig(ctx, s.db, key)
}

func (s *PostgresStore) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return queryListConfigs(ctx, s.db, namespace)
}

func (s *PostgresStore) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return queryListAllConfigs(ctx, s.db)
}

func (s *PostgresStore) DeleteConfig(ctx context.Context, key string) error {
	return queryDeleteConfig(ctx, s.db, key)
}

// EnsureUserRole returns the user's role, provisioning it on first sight.
// The common already-provisioned case avoids the table lock.
func (s *PostgresStore) EnsureUserRole(ctx context.Context, userID string) (*model.UserRole, error) {
	ur, err := queryGetUserRole(ctx, s.db, userID)
	if err == nil {
		return ur, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	err = s.RunInTransaction(ctx, func(tx store.Store) error {
		ur, err = tx.EnsureUserRole(ctx, userID)
		return err
	})
	return ur, err
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateInitiative(ctx context.Context, in *model.Initiative) error {
	return queryCreateInitiative(ctx, s.tx, in)
}

func (s *txStore) GetInitiative(ctx context.Context, id string) (*model.Initiative, error) {
	return queryGetInitiative(ctx, s.tx, id)
}

func (s *txStore) ListInitiatives(ctx context.Context, filter model.InitiativeFilter) ([]*model.Initiative, int, error) {
	return queryListInitiatives(ctx, s.tx, filter)
}

func (s *txStore) DeleteInitiative(ctx context.Context, id string) error {
	return queryDeleteInitiative(ctx, s.tx, id)
}

func (s *txStore) EnsureGateForm(ctx context.Context, initiativeID string, gate model.Gate) error {
	return queryEnsureGateForm(ctx, s.tx, initiativeID, gate)
}

func (s *txStore) GetGateForm(ctx context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	return queryGetGateForm(ctx, s.tx, initiativeID, gate)
}

func (s *txStore) LockGateForm(ctx context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	return queryLockGateForm(ctx, s.tx, initiativeID, gate)
}

func (s *txStore) ListGateForms(ctx context.Context, initiativeID string) ([]*model.GateForm, error) {
	return queryListGateForms(ctx, s.tx, initiativeID)
}

func (s *txStore) UpdateGateForm(ctx context.Context, form *model.GateForm, expectedVersion int64) error {
	return queryUpdateGateForm(ctx, s.tx, form, expectedVersion)
}

func (s *txStore) GetInitiativeStatus(ctx context.Context, initiativeID string) (*model.InitiativeStatus, error) {
	return queryGetInitiativeStatus(ctx, s.tx, initiativeID)
}

func (s *txStore) SetInitiativeStatus(ctx context.Context, status *model.InitiativeStatus) error {
	return querySetInitiativeStatus(ctx, s.tx, status)
}

func (s *txStore) GetUserRole(ctx context.Context, userID string) (*model.UserRole, error) {
	return queryGetUserRole(ctx, s.tx, userID)
}

// SetUserRole takes the user_roles lock first, so a caller that checks the
// remaining control towers afterwards sees every concurrent assignment.
func (s *txStore) SetUserRole(ctx context.Context, ur *model.UserRole) error {
	if err := lockUserRoles(ctx, s.tx); err != nil {
		return err
	}
	return querySetUserRole(ctx, s.tx, ur)
}

func (s *txStore) ListUserRoles(ctx context.Context) ([]*model.UserRole, error) {
	return queryListUserRoles(ctx, s.tx)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, initiativeID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, initiativeID)
}

func (s *txStore) SetConfig(ctx context.Context, config *model.Config) error {
	return querySetConfig(ctx, s.tx, config)
}

func (s *txStore) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	return queryGetConfig(ctx, s.tx, key)
}

func (s *txStore) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	return queryListConfigs(ctx, s.tx, namespace)
}

func (s *txStore) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	return queryListAllConfigs(ctx, s.tx)
}

func (s *txStore) DeleteConfig(ctx context.Context, key string) error {
	return queryDeleteConfig(ctx, s.tx, key)
}

func (s *txStore) EnsureUserRole(ctx context.Context, userID string) (*model.UserRole, error) {
	return queryEnsureUserRole(ctx, s.tx, userID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
