// Package memory implements store.Store in process memory. It backs
// `lgd serve --memory` and the server tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

// Store is an in-memory store.Store. Transactions hold the store lock for
// their whole duration and roll back by restoring a snapshot.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for created/updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateInitiative(_ context.Context, in *model.Initiative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createInitiative(in, s.now())
}

func (s *Store) GetInitiative(_ context.Context, id string) (*model.Initiative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getInitiative(id)
}

func (s *Store) ListInitiatives(_ context.Context, filter model.InitiativeFilter) ([]*model.Initiative, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listInitiatives(filter)
}

func (s *Store) DeleteInitiative(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteInitiative(id)
}

func (s *Store) EnsureGateForm(_ context.Context, initiativeID string, gate model.Gate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ensureGateForm(initiativeID, gate, s.now())
}

func (s *Store) GetGateForm(_ context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getGateForm(initiativeID, gate)
}

func (s *Store) LockGateForm(_ context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getGateForm(initiativeID, gate)
}

func (s *Store) ListGateForms(_ context.Context, initiativeID string) ([]*model.GateForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listGateForms(initiativeID)
}

func (s *Store) UpdateGateForm(_ context.Context, form *model.GateForm, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateGateForm(form, expectedVersion)
}

func (s *Store) GetInitiativeStatus(_ context.Context, initiativeID string) (*model.InitiativeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getInitiativeStatus(initiativeID)
}

func (s *Store) SetInitiativeStatus(_ context.Context, status *model.InitiativeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.setInitiativeStatus(status, s.now())
}

func (s *Store) GetUserRole(_ context.Context, userID string) (*model.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getUserRole(userID)
}

func (s *Store) EnsureUserRole(_ context.Context, userID string) (*model.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ensureUserRole(userID, s.now())
}

func (s *Store) SetUserRole(_ context.Context, ur *model.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.setUserRole(ur, s.now())
}

func (s *Store) ListUserRoles(_ context.Context) ([]*model.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listUserRoles()
}

func (s *Store) RecordEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.recordEvent(event, s.now())
}

func (s *Store) GetEvents(_ context.Context, initiativeID string) ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getEvents(initiativeID)
}

func (s *Store) SetConfig(_ context.Context, config *model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.setConfig(config, s.now())
}

func (s *Store) GetConfig(_ context.Context, key string) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getConfig(key)
}

func (s *Store) ListConfigs(_ context.Context, namespace string) ([]*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listConfigs(namespace)
}

func (s *Store) ListAllConfigs(_ context.Context) ([]*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAllConfigs()
}

func (s *Store) DeleteConfig(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteConfig(key)
}

// RunInTransaction runs fn against a transactional view of the store. If fn
// returns an error every change it made is discarded.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txStore{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// txStore operates on the state while the parent Store's lock is held.
type txStore struct {
	st  *state
	now func() time.Time
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateInitiative(_ context.Context, in *model.Initiative) error {
	return s.st.createInitiative(in, s.now())
}

func (s *txStore) GetInitiative(_ context.Context, id string) (*model.Initiative, error) {
	return s.st.getInitiative(id)
}

func (s *txStore) ListInitiatives(_ context.Context, filter model.InitiativeFilter) ([]*model.Initiative, int, error) {
	return s.st.listInitiatives(filter)
}

func (s *txStore) DeleteInitiative(_ context.Context, id string) error {
	return s.st.deleteInitiative(id)
}

func (s *txStore) EnsureGateForm(_ context.Context, initiativeID string, gate model.Gate) error {
	return s.st.ensureGateForm(initiativeID, gate, s.now())
}

func (s *txStore) GetGateForm(_ context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	return s.st.getGateForm(initiativeID, gate)
}

func (s *txStore) LockGateForm(_ context.Context, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	return s.st.getGateForm(initiativeID, gate)
}

func (s *txStore) ListGateForms(_ context.Context, initiativeID string) ([]*model.GateForm, error) {
	return s.st.listGateForms(initiativeID)
}

func (s *txStore) UpdateGateForm(_ context.Context, form *model.GateForm, expectedVersion int64) error {
	return s.st.updateGateForm(form, expectedVersion)
}

func (s *txStore) GetInitiativeStatus(_ context.Context, initiativeID string) (*model.InitiativeStatus, error) {
	return s.st.getInitiativeStatus(initiativeID)
}

func (s *txStore) SetInitiativeStatus(_ context.Context, status *model.InitiativeStatus) error {
	return s.st.setInitiativeStatus(status, s.now())
}

func (s *txStore) GetUserRole(_ context.Context, userID string) (*model.UserRole, error) {
	return s.st.getUserRole(userID)
}

func (s *txStore) EnsureUserRole(_ context.Context, userID string) (*model.UserRole, error) {
	return s.st.ensureUserRole(userID, s.now())
}

func (s *txStore) SetUserRole(_ context.Context, ur *model.UserRole) error {
	return s.st.setUserRole(ur, s.now())
}

func (s *txStore) ListUserRoles(_ context.Context) ([]*model.UserRole, error) {
	return s.st.listUserRoles()
}

func (s *txStore) RecordEvent(_ context.Context, event *model.Event) error {
	return s.st.recordEvent(event, s.now())
}

func (s *txStore) GetEvents(_ context.Context, initiativeID string) ([]*model.Event, error) {
	return s.st.getEvents(initiativeID)
}

func (s *txStore) SetConfig(_ context.Context, config *model.Config) error {
	return s.st.setConfig(config, s.now())
}

func (s *txStore) GetConfig(_ context.Context, key string) (*model.Config, error) {
	return s.st.getConfig(key)
}

func (s *txStore) ListConfigs(_ context.Context, namespace string) ([]*model.Config, error) {
	return s.st.listConfigs(namespace)
}

func (s *txStore) ListAllConfigs(_ context.Context) ([]*model.Config, error) {
	return s.st.listAllConfigs()
}

func (s *txStore) DeleteConfig(_ context.Context, key string) error {
	return s.st.deleteConfig(key)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store.
func (s *txStore) Close() error {
	return nil
}
