// Package workflow implements the gate-form approval state machine.
//
//	not_started/draft/rejected --save--> draft
//	change_requested --save--> change_requested
//	draft/change_requested --submit--> submitted
//	submitted --approve--> approved
//	submitted --reject--> rejected
//	approved --request change--> change_requested
//
// Every other (action, status) pair is an invalid transition. Role checks
// go through access.Evaluate so the server and the CLI share one table.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/lgates/internal/access"
	"github.com/alfredjeanlab/lgates/internal/model"
)

// Action is a user-initiated transition on a gate form.
type Action string

const (
	ActionSaveDraft     Action = "save_draft"
	ActionSubmit        Action = "submit"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionRequestChange Action = "request_change"
)

// Actions lists every action in the order a UI would offer them.
var Actions = []Action{ActionSaveDraft, ActionSubmit, ActionApprove, ActionReject, ActionRequestChange}

// IsValid checks whether the action is known.
func (a Action) IsValid() bool {
	_, ok := transitions[a]
	return ok
}

func (a Action) verb() string {
	switch a {
	case ActionSaveDraft:
		return "save"
	case ActionRequestChange:
		return "request a change to"
	default:
		return string(a)
	}
}

type transition struct {
	from []model.FormStatus
	to   func(from model.FormStatus) model.FormStatus
}

func always(s model.FormStatus) func(model.FormStatus) model.FormStatus {
	return func(model.FormStatus) model.FormStatus { return s }
}

var transitions = map[Action]transition{
	ActionSaveDraft: {
		from: []model.FormStatus{model.FormNotStarted, model.FormDraft, model.FormRejected, model.FormChangeRequested},
		to: func(from model.FormStatus) model.FormStatus {
			// A reopened form keeps its flag until it is resubmitted.
			if from == model.FormChangeRequested {
				return model.FormChangeRequested
			}
			return model.FormDraft
		},
	},
	ActionSubmit: {
		from: []model.FormStatus{model.FormDraft, model.FormChangeRequested},
		to:   always(model.FormSubmitted),
	},
	ActionApprove: {
		from: []model.FormStatus{model.FormSubmitted},
		to:   always(model.FormApproved),
	},
	ActionReject: {
		from: []model.FormStatus{model.FormSubmitted},
		to:   always(model.FormRejected),
	},
	ActionRequestChange: {
		from: []model.FormStatus{model.FormApproved},
		to:   always(model.FormChangeRequested),
	},
}

// Target returns the status a form moves to when action is applied in
// status from. ok is false when the transition table has no such edge.
func Target(action Action, from model.FormStatus) (to model.FormStatus, ok bool) {
	t, known := transitions[action]
	if !known {
		return "", false
	}
	for _, s := range t.from {
		if s == from {
			return t.to(from), true
		}
	}
	return "", false
}

// Check reports whether role may perform action on a form in status. It
// covers role and state only; content rules are enforced by Apply.
func Check(action Action, role model.Role, status model.FormStatus) error {
	d := access.Evaluate(role, status)

	switch action {
	case ActionSaveDraft, ActionSubmit:
		if !d.CanEdit {
			if role.IsEditor() && status.IsLocked() {
				return ErrLocked
			}
			return forbidden(role, action)
		}
	case ActionApprove, ActionReject:
		if role != model.RoleControlTower {
			return forbidden(role, action)
		}
		if !d.CanApprove {
			return &TransitionError{Action: action, From: status}
		}
	case ActionRequestChange:
		if !role.IsEditor() {
			return forbidden(role, action)
		}
		if !d.CanRequestChange {
			return &TransitionError{Action: action, From: status}
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}

	if _, ok := Target(action, status); !ok {
		return &TransitionError{Action: action, From: status}
	}
	return nil
}

// Available returns the actions role may take on a form in status.
func Available(role model.Role, status model.FormStatus) []Action {
	out := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if Check(a, role, status) == nil {
			out = append(out, a)
		}
	}
	return out
}

// Actor identifies who performs a transition.
type Actor struct {
	UserID string
	Role   model.Role
}

// Request is one transition attempt.
type Request struct {
	Action Action
	Actor  Actor

	// FormData replaces the form content on save and submit. Nil keeps the
	// current content. Other actions reject a non-nil FormData.
	FormData json.RawMessage

	// Reason is required for reject and request change.
	Reason string

	// Requirements is the checklist enforced on submit. Nil uses the
	// gate's built-in checklist.
	Requirements *model.GateRequirements

	Now time.Time
}

// Apply runs req against form and returns the resulting form. form itself
// is never modified; on error the caller's state is unchanged. The returned
// form keeps the input Version; persisting it is the store's job.
func Apply(form *model.GateForm, req Request) (*model.GateForm, error) {
	if strings.TrimSpace(req.Actor.UserID) == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	if err := Check(req.Action, req.Actor.Role, form.Status); err != nil {
		return nil, err
	}

	if req.FormData != nil && req.Action != ActionSaveDraft && req.Action != ActionSubmit {
		return nil, ErrFormDataWithReview
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	to, _ := Target(req.Action, form.Status)
	next := form.Clone()

	switch req.Action {
	case ActionSaveDraft, ActionSubmit:
		if req.FormData != nil {
			if err := model.ValidateFormData(req.FormData); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			next.FormData = append(json.RawMessage(nil), req.FormData...)
		}
		if req.Action == ActionSubmit {
			reqs := req.Requirements
			if reqs == nil {
				reqs = model.DefaultRequirements(form.Gate)
			}
			missing, err := Missing(next.FormData, reqs.RequiredKeys())
			if err != nil {
				return nil, err
			}
			if len(missing) > 0 {
				return nil, &IncompleteError{Missing: missing}
			}
			next.SubmittedBy = req.Actor.UserID
			next.SubmittedAt = &now
		}

	case ActionApprove:
		next.ApprovedBy = req.Actor.UserID
		next.ApprovedAt = &now

	case ActionReject:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, ErrReasonRequired
		}
		next.RejectionReason = reason
		next.RejectedBy = req.Actor.UserID
		next.RejectedAt = &now

	case ActionRequestChange:
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, ErrReasonRequired
		}
		next.ChangeRequestReason = reason
		next.ChangeRequestedBy = req.Actor.UserID
		next.ChangeRequestedAt = &now
	}

	next.Status = to
	next.UpdatedAt = now
	next.UpdatedBy = req.Actor.UserID
	return next, nil
}

// View is a form as presented to one caller, with that caller's access
// decision and the actions they may take.
type View struct {
	*model.GateForm
	Access  access.Decision `json:"access"`
	Actions []Action        `json:"actions"`
}

// NewView builds the View of form for role.
func NewView(form *model.GateForm, role model.Role) View {
	return View{
		GateForm: form,
		Access:   access.Evaluate(role, form.Status),
		Actions:  Available(role, form.Status),
	}
}
