package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationError) errOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateInitiative checks an Initiative for constraint violations.
func ValidateInitiative(in *Initiative) error {
	var ve ValidationError

	name := strings.TrimSpace(in.Name)
	if name == "" {
		ve.add("name", "is required")
	} else if len([]rune(name)) > 200 {
		ve.add("name", "must be 200 characters or fewer")
	}
	if strings.TrimSpace(in.ID) == "" {
		ve.add("id", "is required")
	} else if strings.ContainsAny(in.ID, "/ \t\n") {
		ve.add("id", "must not contain slashes or whitespace")
	}

	return ve.errOrNil()
}

// ValidateFormData checks that form content is a JSON object.
func ValidateFormData(data json.RawMessage) error {
	var ve ValidationError
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		ve.add("formData", "is required")
	case !json.Valid(trimmed):
		ve.add("formData", "contains invalid JSON")
	case trimmed[0] != '{':
		ve.add("formData", "must be a JSON object")
	}
	return ve.errOrNil()
}

// ValidateStatusPatch checks that every named axis is green, yellow or red.
func ValidateStatusPatch(p StatusPatch) error {
	var ve ValidationError
	if p.IsEmpty() {
		ve.add("status", "at least one of costStatus, benefitStatus, timelineStatus, scopeStatus is required")
	}
	for _, axis := range []struct {
		field string
		value *RAG
	}{
		{"costStatus", p.CostStatus},
		{"benefitStatus", p.BenefitStatus},
		{"timelineStatus", p.TimelineStatus},
		{"scopeStatus", p.ScopeStatus},
	} {
		if axis.value != nil && !axis.value.IsValid() {
			ve.add(axis.field, fmt.Sprintf("invalid value %q (must be green, yellow or red)", *axis.value))
		}
	}
	return ve.errOrNil()
}

// ValidateUserRole checks a role assignment.
func ValidateUserRole(ur *UserRole) error {
	var ve ValidationError
	if strings.TrimSpace(ur.UserID) == "" {
		ve.add("userId", "is required")
	}
	if !ur.Role.IsValid() {
		ve.add("role", fmt.Sprintf("invalid value %q (must be control_tower, sto or slt)", ur.Role))
	}
	return ve.errOrNil()
}

// ValidateRequirements checks a gate checklist definition.
func ValidateRequirements(r *GateRequirements) error {
	var ve ValidationError
	if !r.Gate.IsValid() {
		ve.add("gate", fmt.Sprintf("invalid value %q", r.Gate))
	}
	seen := make(map[string]bool, len(r.Fields))
	for i, f := range r.Fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			ve.add(fmt.Sprintf("fields[%d].key", i), "is required")
			continue
		}
		if seen[key] {
			ve.add(fmt.Sprintf("fields[%d].key", i), fmt.Sprintf("duplicate key %q", key))
		}
		seen[key] = true
	}
	return ve.errOrNil()
}
