// Package access holds the single authorization decision table for gate
// forms. The server guards requests with it and the CLI consults it before
// sending a write, so both sides always agree.
package access

import "github.com/alfredjeanlab/lgates/internal/model"

// Decision is what a role may do with a form in a given status.
type Decision struct {
	CanView          bool `json:"canView"`
	CanEdit          bool `json:"canEdit"`
	CanApprove       bool `json:"canApprove"`
	CanRequestChange bool `json:"canRequestChange"`
}

// Evaluate maps (role, status) to a Decision.
//
//	control_tower: view; edit unless approved; approve iff submitted
//	sto:           view; edit unless approved
//	slt:           view only
//
// Editors may request a change only on an approved form. Unknown roles get
// nothing.
func Evaluate(role model.Role, status model.FormStatus) Decision {
	if !role.IsValid() {
		return Decision{}
	}
	d := Decision{CanView: true}
	if role.IsEditor() {
		d.CanEdit = !status.IsLocked()
		d.CanRequestChange = status == model.FormApproved
	}
	if role == model.RoleControlTower {
		d.CanApprove = status == model.FormSubmitted
	}
	return d
}

// CanSetStatus reports whether role may write initiative RAG statuses.
func CanSetStatus(role model.Role) bool {
	return role.IsEditor()
}

// CanAdminister reports whether role may manage initiatives, role
// assignments and configuration.
func CanAdminister(role model.Role) bool {
	return role == model.RoleControlTower
}
