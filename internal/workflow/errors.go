package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/lgates/internal/model"
)

// Error classes. Transport layers map them with errors.Is:
// ErrForbidden → 403, ErrInvalidTransition → 409, ErrInvalidInput → 400.
var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidInput      = errors.New("invalid input")
)

var (
	// ErrLocked is returned for any content edit on an approved form.
	ErrLocked = fmt.Errorf("%w: form is approved and locked; request a change to reopen it", ErrForbidden)
	// ErrReasonRequired is returned when Reject or Request Change has no reason.
	ErrReasonRequired = fmt.Errorf("%w: reason is required", ErrInvalidInput)
	// ErrFormDataWithReview is returned when form content accompanies an
	// action that does not save it.
	ErrFormDataWithReview = fmt.Errorf("%w: formData cannot be changed while requesting a change, approving or rejecting; save after the form is reopened", ErrInvalidInput)
)

func forbidden(role model.Role, action Action) error {
	if role == "" {
		role = "unknown"
	}
	return fmt.Errorf("%w: role %s cannot %s a gate form", ErrForbidden, role, action.verb())
}

// TransitionError reports an action attempted from a status the transition
// table does not allow it from.
type TransitionError struct {
	Action Action
	From   model.FormStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a form that is %s", e.Action.verb(), e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IncompleteError lists the required checklist items that are still empty.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "invalid input: required fields are not complete: " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteError) Unwrap() error { return ErrInvalidInput }
