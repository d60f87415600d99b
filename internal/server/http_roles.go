package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/lgates/internal/access"
	"github.com/alfredjeanlab/lgates/internal/events"
	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
)

// setRoleRequest is the JSON body for PUT /api/user/{userId}/role.
type setRoleRequest struct {
	Role        model.Role `json:"role"`
	ValueStream string     `json:"valueStream"`
}

// handleGetMyRole handles GET /api/user/role. The caller is provisioned on
// first sight: the very first user becomes control_tower, later ones slt.
func (s *GatesServer) handleGetMyRole(w http.ResponseWriter, r *http.Request) {
	uid := UserIDFromContext(r.Context())
	ur, err := s.store.EnsureUserRole(r.Context(), uid)
	if err != nil {
		writeStoreError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, ur)
}

// handleSetUserRole handles PUT /api/user/{userId}/role. A user not seen
// yet is created with the assigned role, which their first request picks
// up. The last control_tower cannot be demoted.
func (s *GatesServer) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := s.actor(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if !access.CanAdminister(actor.Role) {
		writeStoreError(w, forbidden("role %s cannot assign roles", actor.Role), "")
		return
	}

	var req setRoleRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeStoreError(w, err, "")
		return
	}
	ur := &model.UserRole{
		UserID:      strings.TrimSpace(r.PathValue("userId")),
		Role:        req.Role,
		ValueStream: strings.TrimSpace(req.ValueStream),
		AssignedBy:  actor.UserID,
	}
	if err := model.ValidateUserRole(ur); err != nil {
		writeStoreError(w, err, "")
		return
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		current, err := actorInTx(ctx, tx, actor)
		if err != nil {
			return err
		}
		if !access.CanAdminister(current.Role) {
			return forbidden("role %s cannot assign roles", current.Role)
		}
		// Role writers serialize on SetUserRole, so the count below sees
		// every assignment committed before this one.
		if err := tx.SetUserRole(ctx, ur); err != nil {
			return err
		}
		if ur.Role != model.RoleControlTower {
			if err := requireControlTower(ctx, tx); err != nil {
				return err
			}
		}
		return s.record(ctx, tx, events.TopicRoleAssigned, "", "", actor.UserID, events.RoleAssigned{UserRole: ur})
	})
	if err != nil {
		writeStoreError(w, err, "user not found")
		return
	}
	s.publish(ctx, events.TopicRoleAssigned, "", events.RoleAssigned{UserRole: ur})
	writeJSON(w, http.StatusOK, ur)
}

// errLastControlTower is returned when a role change would leave nobody able
// to assign roles.
var errLastControlTower = errors.New("at least one control_tower must remain; promote another user first")

// requireControlTower fails unless some user still holds control_tower.
func requireControlTower(ctx context.Context, tx store.Store) error {
	users, err := tx.ListUserRoles(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Role == model.RoleControlTower {
			return nil
		}
	}
	return errLastControlTower
}

// handleListUsers handles GET /api/users.
func (s *GatesServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := s.actor(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if !access.CanAdminister(actor.Role) {
		writeStoreError(w, forbidden("role %s cannot list users", actor.Role), "")
		return
	}

	users, err := s.store.ListUserRoles(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if users == nil {
		users = []*model.UserRole{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
