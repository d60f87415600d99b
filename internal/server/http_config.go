package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/lgates/internal/access"
	"github.com/alfredjeanlab/lgates/internal/model"
)

// setConfigRequest is the JSON body for PUT /api/configs/{key}.
type setConfigRequest struct {
	Value json.RawMessage `json:"value"`
}

// handleSetConfig handles PUT /api/configs/{key}.
func (s *GatesServer) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if !s.requireAdmin(w, r, "change configs") {
		return
	}

	var req setConfigRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeStoreError(w, err, "")
		return
	}
	config := &model.Config{Key: key, Value: req.Value}
	if err := validateConfig(config); err != nil {
		writeStoreError(w, err, "")
		return
	}

	if err := s.store.SetConfig(ctx, config); err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, config)
}

// handleGetConfig handles GET /api/configs/{key}.
func (s *GatesServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	config, err := s.getConfig(r.Context(), key)
	if err != nil {
		writeStoreError(w, err, "config not found")
		return
	}
	writeJSON(w, http.StatusOK, config)
}

// handleListConfigs handles GET /api/configs?namespace=...
func (s *GatesServer) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.listConfigsWithBuiltins(r.Context(), r.URL.Query().Get("namespace"))
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if configs == nil {
		configs = []*model.Config{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs})
}

// handleDeleteConfig handles DELETE /api/configs/{key}. Deleting a gate
// checklist override restores the builtin default.
func (s *GatesServer) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if !s.requireAdmin(w, r, "change configs") {
		return
	}

	if err := s.store.DeleteConfig(r.Context(), key); err != nil {
		writeStoreError(w, err, "config not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetRequirements handles GET /api/gates/{gate}/requirements.
func (s *GatesServer) handleGetRequirements(w http.ResponseWriter, r *http.Request) {
	gate, err := parseGate(r)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	reqs, err := resolveRequirements(r.Context(), s.store, gate)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// requireAdmin writes a 403 and returns false unless the caller is
// control_tower.
func (s *GatesServer) requireAdmin(w http.ResponseWriter, r *http.Request, what string) bool {
	actor, err := s.actor(r.Context())
	if err != nil {
		writeStoreError(w, err, "")
		return false
	}
	if !access.CanAdminister(actor.Role) {
		writeStoreError(w, forbidden("role %s cannot %s", actor.Role, what), "")
		return false
	}
	return true
}
