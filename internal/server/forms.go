package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/lgates/internal/events"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

// transitionInput is one gate form action as received from a transport.
type transitionInput struct {
	Action   workflow.Action
	FormData json.RawMessage
	Reason   string
	// Version is the form version the caller last read. Nil means "whatever
	// is current", which only the review actions allow.
	Version *int64
}

// getForm returns the stored form, or the default not_started form when
// the initiative exists but nobody has touched this gate yet.
func (s *GatesServer) getForm(ctx context.Context, r store.Store, initiativeID string, gate model.Gate) (*model.GateForm, error) {
	f, err := r.GetGateForm(ctx, initiativeID, gate)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	in, err := r.GetInitiative(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	return model.NewGateForm(initiativeID, gate, in.CreatedAt), nil
}

// listForms returns all seven gate forms of an initiative in gate order.
func (s *GatesServer) listForms(ctx context.Context, initiativeID string) ([]*model.GateForm, error) {
	in, err := s.store.GetInitiative(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.ListGateForms(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	byGate := make(map[model.Gate]*model.GateForm, len(stored))
	for _, f := range stored {
		byGate[f.Gate] = f
	}
	out := make([]*model.GateForm, 0, len(model.Gates))
	for _, g := range model.Gates {
		if f, ok := byGate[g]; ok {
			out = append(out, f)
			continue
		}
		out = append(out, model.NewGateForm(initiativeID, g, in.CreatedAt))
	}
	return out, nil
}

// transitionForm applies one workflow action to a gate form. The row is
// locked, transitioned, written back and audited in one transaction; the
// bus announcement happens after commit.
func (s *GatesServer) transitionForm(ctx context.Context, actor workflow.Actor, initiativeID string, gate model.Gate, in transitionInput) (*workflow.View, error) {
	var evt events.FormTransitioned
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		if actor, err = actorInTx(ctx, tx, actor); err != nil {
			return err
		}
		if err := tx.EnsureGateForm(ctx, initiativeID, gate); err != nil {
			return err
		}
		cur, err := tx.LockGateForm(ctx, initiativeID, gate)
		if err != nil {
			return err
		}

		req := workflow.Request{
			Action:   in.Action,
			Actor:    actor,
			FormData: in.FormData,
			Reason:   in.Reason,
			Now:      s.now(),
		}
		if in.Action == workflow.ActionSubmit {
			if req.Requirements, err = resolveRequirements(ctx, tx, gate); err != nil {
				return err
			}
		}
		next, err := workflow.Apply(cur, req)
		if err != nil {
			return err
		}

		expected := cur.Version
		if in.Version != nil && *in.Version != cur.Version {
			return fmt.Errorf("%w (have %d, stored %d)", store.ErrVersionConflict, *in.Version, cur.Version)
		}
		if err := tx.UpdateGateForm(ctx, next, expected); err != nil {
			return err
		}

		evt = events.FormTransitioned{Form: next, Action: in.Action, From: cur.Status, Reason: req.Reason}
		return s.record(ctx, tx, events.FormTopic(in.Action), initiativeID, gate, actor.UserID, evt)
	})
	s.observeTransition(in.Action, gate, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.FormTopic(in.Action), initiativeID, evt)
	view := workflow.NewView(evt.Form, actor.Role)
	return &view, nil
}

func (s *GatesServer) observeTransition(action workflow.Action, gate model.Gate, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrForbidden):
		outcome = "forbidden"
	case errors.Is(err, workflow.ErrInvalidTransition):
		outcome = "invalid_transition"
	case errors.Is(err, store.ErrVersionConflict):
		outcome = "conflict"
	case errors.Is(err, workflow.ErrInvalidInput):
		outcome = "invalid_input"
	case errors.Is(err, sql.ErrNoRows):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	s.metrics.ObserveTransition(string(action), string(gate), outcome)
}
