package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/lgates/internal/events"
	"github.com/alfredjeanlab/lgates/internal/metrics"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

// GatesServer serves the governance API on top of a store.
type GatesServer struct {
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Registry
	now       func() time.Time
}

// NewGatesServer returns a new GatesServer backed by the given store and
// publisher. m may be nil, in which case no metrics are collected and
// /metrics is not served.
func NewGatesServer(s store.Store, p events.Publisher, m *metrics.Registry) *GatesServer {
	if p == nil {
		p = events.Discard
	}
	return &GatesServer{
		store:     s,
		publisher: p,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the server's time source. Tests use it to pin audit
// timestamps.
func (s *GatesServer) SetClock(now func() time.Time) {
	s.now = now
}

// record persists an audit event through tx. It runs inside the mutation's
// transaction so an event exists if and only if the change committed.
func (s *GatesServer) record(ctx context.Context, tx store.Store, topic, initiativeID string, gate model.Gate, actor string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	if err := tx.RecordEvent(ctx, &model.Event{
		Topic:        topic,
		InitiativeID: initiativeID,
		Gate:         gate,
		Actor:        actor,
		Payload:      payload,
	}); err != nil {
		return fmt.Errorf("record %s event: %w", topic, err)
	}
	return nil
}

// publish announces a committed change on the event bus. It is best-effort;
// failures are logged but do not fail the request.
func (s *GatesServer) publish(ctx context.Context, topic, initiativeID string, event any) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "initiative_id", initiativeID, "error", err)
	}
}

// actor resolves the authenticated caller's role, provisioning one on first
// sight.
func (s *GatesServer) actor(ctx context.Context) (workflow.Actor, error) {
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return workflow.Actor{}, errUnauthenticated
	}
	ur, err := s.store.EnsureUserRole(ctx, uid)
	if err != nil {
		return workflow.Actor{}, fmt.Errorf("resolve role for %s: %w", uid, err)
	}
	return workflow.Actor{UserID: uid, Role: ur.Role}, nil
}

// actorInTx re-reads the caller's role within tx. Permission checks made
// inside a transaction use it rather than the role resolved up front.
func actorInTx(ctx context.Context, tx store.Store, actor workflow.Actor) (workflow.Actor, error) {
	ur, err := tx.GetUserRole(ctx, actor.UserID)
	if err != nil {
		return workflow.Actor{}, fmt.Errorf("resolve role for %s: %w", actor.UserID, err)
	}
	actor.Role = ur.Role
	return actor, nil
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// forbidden builds a role error that classifies like the workflow's.
func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", workflow.ErrForbidden, fmt.Sprintf(format, args...))
}
