package events

import (
	"context"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

// Event topic constants
const (
	TopicInitiativeCreated = "lgates.initiative.created"
	TopicInitiativeDeleted = "lgates.initiative.deleted"

	// Gate form transitions, one topic per action.
	TopicFormSaved           = "lgates.form.saved"
	TopicFormSubmitted       = "lgates.form.submitted"
	TopicFormApproved        = "lgates.form.approved"
	TopicFormRejected        = "lgates.form.rejected"
	TopicFormChangeRequested = "lgates.form.change_requested"

	TopicStatusUpdated = "lgates.status.updated"
	TopicRoleAssigned  = "lgates.role.assigned"

	// TopicAll matches every topic above.
	TopicAll = "lgates.>"
)

var formTopics = map[workflow.Action]string{
	workflow.ActionSaveDraft:     TopicFormSaved,
	workflow.ActionSubmit:        TopicFormSubmitted,
	workflow.ActionApprove:       TopicFormApproved,
	workflow.ActionReject:        TopicFormRejected,
	workflow.ActionRequestChange: TopicFormChangeRequested,
}

// FormTopic returns the topic announcing a completed workflow action.
func FormTopic(a workflow.Action) string {
	return formTopics[a]
}

// Event types

type InitiativeCreated struct {
	Initiative *model.Initiative `json:"initiative"`
}

type InitiativeDeleted struct {
	InitiativeID string `json:"initiativeId"`
}

// FormTransitioned is published for every gate form action.
type FormTransitioned struct {
	Form   *model.GateForm  `json:"form"`
	Action workflow.Action  `json:"action"`
	From   model.FormStatus `json:"from"`
	Reason string           `json:"reason,omitempty"`
}

type StatusUpdated struct {
	Status *model.InitiativeStatus `json:"status"`
}

type RoleAssigned struct {
	UserRole *model.UserRole `json:"userRole"`
}

func (e InitiativeCreated) initiative() string {
	if e.Initiative == nil {
		return ""
	}
	return e.Initiative.ID
}

func (e InitiativeDeleted) initiative() string { return e.InitiativeID }

func (e FormTransitioned) initiative() string {
	if e.Form == nil {
		return ""
	}
	return e.Form.InitiativeID
}

func (e StatusUpdated) initiative() string {
	if e.Status == nil {
		return ""
	}
	return e.Status.InitiativeID
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Discard is a Publisher that drops every event. It stands in when no
// NATS URL is configured.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, string, any) error { return nil }
func (discard) Close() error                               { return nil }
