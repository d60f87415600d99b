package model

import (
	"encoding/json"
	"fmt"
)

// Requirement is one checklist item on a gate form. Only required items
// block submission.
type Requirement struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// GateRequirements is the checklist a gate form must satisfy before it can
// be submitted for review.
type GateRequirements struct {
	Gate   Gate          `json:"gate"`
	Title  string        `json:"title"`
	Fields []Requirement `json:"fields"`
}

// RequiredKeys returns the keys of the required checklist items, in order.
func (r *GateRequirements) RequiredKeys() []string {
	var keys []string
	for _, f := range r.Fields {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// RequirementsConfigKey is the config key that overrides a gate's checklist.
func RequirementsConfigKey(g Gate) string {
	return "gate:" + string(g)
}

var defaultRequirements = map[Gate]GateRequirements{
	GateL0: {Gate: GateL0, Title: "Ideation", Fields: []Requirement{
		{Key: "problemStatement", Label: "Problem statement", Required: true},
		{Key: "sponsor", Label: "Executive sponsor", Required: true},
	}},
	GateL1: {Gate: GateL1, Title: "Concept", Fields: []Requirement{
		{Key: "objectives", Label: "Objectives", Required: true},
		{Key: "targetOutcomes", Label: "Target outcomes", Required: true},
	}},
	GateL2: {Gate: GateL2, Title: "Feasibility", Fields: []Requirement{
		{Key: "options", Label: "Options considered", Required: true},
		{Key: "risks", Label: "Key risks", Required: true},
	}},
	GateL3: {Gate: GateL3, Title: "Business case", Fields: []Requirement{
		{Key: "objectives", Label: "Objectives", Required: true},
		{Key: "costEstimate", Label: "Cost estimate"},
		{Key: "benefitEstimate", Label: "Benefit estimate"},
		{Key: "fteAllocation", Label: "FTE allocation"},
	}},
	GateL4: {Gate: GateL4, Title: "Build", Fields: []Requirement{
		{Key: "milestones", Label: "Milestones", Required: true},
		{Key: "budget", Label: "Approved budget", Required: true},
	}},
	GateL5: {Gate: GateL5, Title: "Launch readiness", Fields: []Requirement{
		{Key: "launchPlan", Label: "Launch plan", Required: true},
		{Key: "supportModel", Label: "Support model", Required: true},
	}},
	GateL6: {Gate: GateL6, Title: "Benefits review", Fields: []Requirement{
		{Key: "realizedBenefits", Label: "Realized benefits", Required: true},
		{Key: "lessonsLearned", Label: "Lessons learned"},
	}},
}

// DefaultRequirements returns the built-in checklist for a gate.
func DefaultRequirements(g Gate) *GateRequirements {
	r, ok := defaultRequirements[g]
	if !ok {
		return &GateRequirements{Gate: g}
	}
	r.Fields = append([]Requirement(nil), r.Fields...)
	return &r
}

// ParseRequirements decodes a stored checklist override for gate g.
func ParseRequirements(g Gate, raw json.RawMessage) (*GateRequirements, error) {
	var r GateRequirements
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode requirements for %s: %w", g, err)
	}
	r.Gate = g
	if err := ValidateRequirements(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
