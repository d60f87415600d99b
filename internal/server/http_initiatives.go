package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/lgates/internal/access"
	"github.com/alfredjeanlab/lgates/internal/events"
	"github.com/alfredjeanlab/lgates/internal/idgen"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

// createInitiativeRequest is the JSON body for POST /api/initiatives.
type createInitiativeRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ValueStream string `json:"valueStream"`
	Owner       string `json:"owner"`
}

// handleCreateInitiative handles POST /api/initiatives.
func (s *GatesServer) handleCreateInitiative(w http.ResponseWriter, r *http.Request) {
	var req createInitiativeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeStoreError(w, err, "")
		return
	}

	in, err := s.createInitiative(r.Context(), req)
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *GatesServer) createInitiative(ctx context.Context, req createInitiativeRequest) (*model.Initiative, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if !access.CanAdminister(actor.Role) {
		return nil, forbidden("role %s cannot create initiatives", actor.Role)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		if id, err = idgen.NewInitiativeID(); err != nil {
			return nil, err
		}
	}
	in := &model.Initiative{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ValueStream: strings.TrimSpace(req.ValueStream),
		Owner:       strings.TrimSpace(req.Owner),
		CreatedBy:   actor.UserID,
	}
	if err := model.ValidateInitiative(in); err != nil {
		return nil, err
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateInitiative(ctx, in); err != nil {
			return err
		}
		return s.record(ctx, tx, events.TopicInitiativeCreated, in.ID, "", actor.UserID, events.InitiativeCreated{Initiative: in})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TopicInitiativeCreated, in.ID, events.InitiativeCreated{Initiative: in})
	return in, nil
}

// handleListInitiatives handles GET /api/initiatives.
func (s *GatesServer) handleListInitiatives(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.InitiativeFilter{
		ValueStream: q.Get("valueStream"),
		Search:      q.Get("search"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	list, total, err := s.store.ListInitiatives(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if list == nil {
		list = []*model.Initiative{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"initiatives": list, "total": total})
}

// handleGetInitiative handles GET /api/initiatives/{id}.
func (s *GatesServer) handleGetInitiative(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetInitiative(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// handleDeleteInitiative handles DELETE /api/initiatives/{id}.
func (s *GatesServer) handleDeleteInitiative(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	actor, err := s.actor(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if !access.CanAdminister(actor.Role) {
		writeStoreError(w, forbidden("role %s cannot delete initiatives", actor.Role), "")
		return
	}

	evt := events.InitiativeDeleted{InitiativeID: id}
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteInitiative(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, tx, events.TopicInitiativeDeleted, id, "", actor.UserID, evt)
	})
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}
	s.publish(ctx, events.TopicInitiativeDeleted, id, evt)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEvents handles GET /api/initiatives/{id}/events.
//
// Audit events outlive their initiative, so a deleted initiative's history
// is still served; only an id that never had events is a 404.
func (s *GatesServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	evts, err := s.store.GetEvents(ctx, id)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if len(evts) == 0 {
		if _, err := s.store.GetInitiative(ctx, id); err != nil {
			writeStoreError(w, err, "initiative not found")
			return
		}
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
