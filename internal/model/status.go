package model

import "time"

// RAG is a red/yellow/green health indicator.
type RAG string

const (
	RAGGreen  RAG = "green"
	RAGYellow RAG = "yellow"
	RAGRed    RAG = "red"
)

// String returns the string representation of the indicator.
func (r RAG) String() string {
	return string(r)
}

// IsValid checks whether the indicator is green, yellow or red.
func (r RAG) IsValid() bool {
	switch r {
	case RAGGreen, RAGYellow, RAGRed:
		return true
	}
	return false
}

// InitiativeStatus holds the four operator-set health axes of an initiative.
// The axes are independent of each other and of gate form state.
type InitiativeStatus struct {
	InitiativeID   string    `json:"initiativeId"`
	CostStatus     RAG       `json:"costStatus"`
	BenefitStatus  RAG       `json:"benefitStatus"`
	TimelineStatus RAG       `json:"timelineStatus"`
	ScopeStatus    RAG       `json:"scopeStatus"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
	UpdatedBy      string    `json:"updatedBy,omitempty"`
}

// DefaultInitiativeStatus returns the all-green status used when none is stored.
func DefaultInitiativeStatus(initiativeID string) *InitiativeStatus {
	return &InitiativeStatus{
		InitiativeID:   initiativeID,
		CostStatus:     RAGGreen,
		BenefitStatus:  RAGGreen,
		TimelineStatus: RAGGreen,
		ScopeStatus:    RAGGreen,
	}
}

// StatusPatch names the axes to change; nil axes are left as they are.
type StatusPatch struct {
	CostStatus     *RAG `json:"costStatus,omitempty"`
	BenefitStatus  *RAG `json:"benefitStatus,omitempty"`
	TimelineStatus *RAG `json:"timelineStatus,omitempty"`
	ScopeStatus    *RAG `json:"scopeStatus,omitempty"`
}

// IsEmpty reports whether the patch names no axis.
func (p StatusPatch) IsEmpty() bool {
	return p.CostStatus == nil && p.BenefitStatus == nil && p.TimelineStatus == nil && p.ScopeStatus == nil
}

// Apply returns a copy of s with the patch applied. Callers validate first.
func (p StatusPatch) Apply(s *InitiativeStatus) *InitiativeStatus {
	out := *s
	if p.CostStatus != nil {
		out.CostStatus = *p.CostStatus
	}
	if p.BenefitStatus != nil {
		out.BenefitStatus = *p.BenefitStatus
	}
	if p.TimelineStatus != nil {
		out.TimelineStatus = *p.TimelineStatus
	}
	if p.ScopeStatus != nil {
		out.ScopeStatus = *p.ScopeStatus
	}
	return &out
}
