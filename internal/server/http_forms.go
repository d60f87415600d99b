package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

// saveFormRequest is the JSON body for PUT /api/initiatives/{id}/forms/{gate}.
type saveFormRequest struct {
	FormData            json.RawMessage  `json:"formData"`
	Status              model.FormStatus `json:"status"`
	ChangeRequestReason string           `json:"changeRequestReason"`
	Version             *int64           `json:"version"`
}

// reviewRequest is the optional JSON body for the approve, reject and
// request-change endpoints.
type reviewRequest struct {
	Reason  string `json:"reason"`
	Version *int64 `json:"version"`
}

// saveAction maps the status a client asks for to the workflow action that
// produces it.
func saveAction(status model.FormStatus) (workflow.Action, error) {
	switch status {
	case "", model.FormDraft:
		return workflow.ActionSaveDraft, nil
	case model.FormSubmitted:
		return workflow.ActionSubmit, nil
	case model.FormChangeRequested:
		return workflow.ActionRequestChange, nil
	case model.FormApproved:
		return "", inputError("use the /approve endpoint to approve a form")
	case model.FormRejected:
		return "", inputError("use the /reject endpoint to reject a form")
	default:
		return "", inputError(fmt.Sprintf("invalid status %q (must be draft, submitted or change_requested)", status))
	}
}

// ifMatchVersion parses an If-Match header carrying a form version.
func ifMatchVersion(h string) (*int64, error) {
	h = strings.TrimSpace(h)
	if h == "" {
		return nil, nil
	}
	h = strings.Trim(strings.TrimPrefix(h, "W/"), `"`)
	v, err := strconv.ParseInt(h, 10, 64)
	if err != nil {
		return nil, inputError("If-Match must be a form version")
	}
	return &v, nil
}

func setETag(w http.ResponseWriter, f *model.GateForm) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(f.Version, 10)))
}

// handleListForms handles GET /api/initiatives/{id}/forms.
func (s *GatesServer) handleListForms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := s.actor(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	forms, err := s.listForms(ctx, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}
	views := make([]workflow.View, 0, len(forms))
	for _, f := range forms {
		views = append(views, workflow.NewView(f, actor.Role))
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": views})
}

// handleGetForm handles GET /api/initiatives/{id}/forms/{gate}.
func (s *GatesServer) handleGetForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gate, err := parseGate(r)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	actor, err := s.actor(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	form, err := s.getForm(ctx, s.store, r.PathValue("id"), gate)
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}
	setETag(w, form)
	writeJSON(w, http.StatusOK, workflow.NewView(form, actor.Role))
}

// handleSaveForm handles PUT /api/initiatives/{id}/forms/{gate}. The body's
// status selects the action: absent or draft saves, submitted submits and
// change_requested reopens an approved form.
func (s *GatesServer) handleSaveForm(w http.ResponseWriter, r *http.Request) {
	gate, err := parseGate(r)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	var req saveFormRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeStoreError(w, err, "")
		return
	}
	action, err := saveAction(req.Status)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	version := req.Version
	if version == nil {
		if version, err = ifMatchVersion(r.Header.Get("If-Match")); err != nil {
			writeStoreError(w, err, "")
			return
		}
	}
	if version == nil {
		writeError(w, http.StatusBadRequest, "version is required (body or If-Match header)")
		return
	}

	in := transitionInput{Action: action, Version: version}
	if data := bytes.TrimSpace(req.FormData); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		in.FormData = req.FormData
	}
	if action == workflow.ActionRequestChange {
		in.Reason = req.ChangeRequestReason
	}
	s.serveTransition(w, r, gate, in)
}

// handleFormAction returns the handler for a review endpoint.
func (s *GatesServer) handleFormAction(action workflow.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gate, err := parseGate(r)
		if err != nil {
			writeStoreError(w, err, "")
			return
		}
		var req reviewRequest
		if err := decodeBody(r, &req, true); err != nil {
			writeStoreError(w, err, "")
			return
		}
		version := req.Version
		if version == nil {
			if version, err = ifMatchVersion(r.Header.Get("If-Match")); err != nil {
				writeStoreError(w, err, "")
				return
			}
		}
		s.serveTransition(w, r, gate, transitionInput{Action: action, Reason: req.Reason, Version: version})
	}
}

func (s *GatesServer) serveTransition(w http.ResponseWriter, r *http.Request, gate model.Gate, in transitionInput) {
	ctx := r.Context()
	actor, err := s.actor(ctx)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	view, err := s.transitionForm(ctx, actor, r.PathValue("id"), gate, in)
	if err != nil {
		writeStoreError(w, err, "initiative not found")
		return
	}
	setETag(w, view.GateForm)
	writeJSON(w, http.StatusOK, view)
}
