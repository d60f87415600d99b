package model

import (
	"encoding/json"
	"time"
)

// FormStatus is the lifecycle state of a gate-review form.
type FormStatus string

const (
	FormNotStarted      FormStatus = "not_started"
	FormDraft           FormStatus = "draft"
	FormSubmitted       FormStatus = "submitted"
	FormApproved        FormStatus = "approved"
	FormRejected        FormStatus = "rejected"
	FormChangeRequested FormStatus = "change_requested"
)

// FormStatuses lists every form status.
var FormStatuses = []FormStatus{
	FormNotStarted, FormDraft, FormSubmitted, FormApproved, FormRejected, FormChangeRequested,
}

// String returns the string representation of the form status.
func (s FormStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s FormStatus) IsValid() bool {
	switch s {
	case FormNotStarted, FormDraft, FormSubmitted, FormApproved, FormRejected, FormChangeRequested:
		return true
	}
	return false
}

// IsLocked reports whether form content is immutable in this status.
func (s FormStatus) IsLocked() bool {
	return s == FormApproved
}

// GateForm is the review document for one (initiative, gate) pair.
type GateForm struct {
	InitiativeID string          `json:"initiativeId"`
	Gate         Gate            `json:"gate"`
	Status       FormStatus      `json:"status"`
	FormData     json.RawMessage `json:"formData"`
	Version      int64           `json:"version"`

	SubmittedBy string     `json:"submittedBy,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`

	RejectionReason string     `json:"rejectionReason,omitempty"`
	RejectedBy      string     `json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`

	ChangeRequestReason string     `json:"changeRequestReason,omitempty"`
	ChangeRequestedBy   string     `json:"changeRequestedBy,omitempty"`
	ChangeRequestedAt   *time.Time `json:"changeRequestedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// EmptyFormData is the content of a form nobody has written to yet.
var EmptyFormData = json.RawMessage(`{}`)

// NewGateForm returns the default not_started form for a pair.
func NewGateForm(initiativeID string, gate Gate, now time.Time) *GateForm {
	return &GateForm{
		InitiativeID: initiativeID,
		Gate:         gate,
		Status:       FormNotStarted,
		FormData:     cloneRaw(EmptyFormData),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy of the form.
func (f *GateForm) Clone() *GateForm {
	if f == nil {
		return nil
	}
	c := *f
	c.FormData = cloneRaw(f.FormData)
	c.SubmittedAt = cloneTime(f.SubmittedAt)
	c.ApprovedAt = cloneTime(f.ApprovedAt)
	c.RejectedAt = cloneTime(f.RejectedAt)
	c.ChangeRequestedAt = cloneTime(f.ChangeRequestedAt)
	return &c
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
