package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/lgates/internal/access"
	"github.com/alfredjeanlab/lgates/internal/events"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

// getStatus returns the stored status or the all-green default for a known
// initiative.
func getStatus(ctx context.Context, r store.Store, initiativeID string) (*model.InitiativeStatus, error) {
	st, err := r.GetInitiativeStatus(ctx, initiativeID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := r.GetInitiative(ctx, initiativeID); err != nil {
		return nil, err
	}
	return model.DefaultInitiativeStatus(initiativeID), nil
}

// handleGetStatus handles GET /api/initiatives/{id}/status.
func (s *GatesServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := getStatus(r.Context(), s.store, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSetStatus handles PUT /api/initiatives/{id}/status. Only the axes
// present in the body change, and one invalid axis rejects the whole body.
func (s *GatesServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	actor, err := s.actor(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if !access.CanSetStatus(actor.Role) {
		writeStoreError(w, forbidden("role %s cannot set initiative status", actor.Role), "")
		return
	}

	var patch model.StatusPatch
	if err := decodeBody(r, &patch, false); err != nil {
		writeStoreError(w, err, "")
		return
	}
	if err := model.ValidateStatusPatch(patch); err != nil {
		writeStoreError(w, err, "")
		return
	}

	var next *model.InitiativeStatus
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		actor, err := actorInTx(ctx, tx, actor)
		if err != nil {
			return err
		}
		if !access.CanSetStatus(actor.Role) {
			return forbidden("role %s cannot set initiative status", actor.Role)
		}
		cur, err := getStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		next = patch.Apply(cur)
		next.UpdatedBy = actor.UserID
		if err := tx.SetInitiativeStatus(ctx, next); err != nil {
			return err
		}
		return s.record(ctx, tx, events.TopicStatusUpdated, id, "", actor.UserID, events.StatusUpdated{Status: next})
	})
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}

	s.observeStatus(patch)
	s.publish(ctx, events.TopicStatusUpdated, id, events.StatusUpdated{Status: next})
	writeJSON(w, http.StatusOK, next)
}

func (s *GatesServer) observeStatus(p model.StatusPatch) {
	if s.metrics == nil {
		return
	}
	for axis, v := range map[string]*model.RAG{
		"cost":     p.CostStatus,
		"benefit":  p.BenefitStatus,
		"timeline": p.TimelineStatus,
		"scope":    p.ScopeStatus,
	} {
		if v != nil {
			s.metrics.ObserveStatus(axis, string(*v))
		}
	}
}
