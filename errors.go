package recovery

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidTransition  = "INVALID_ACTION_TRANSITION"
	TextCodeLockedField        = "LOCKED_FIELD"
	TextCodeUnknownField       = "UNKNOWN_FIELD"
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeFlowBusy           = "FLOW_BUSY"
	TextCodeFlowClosed         = "FLOW_CLOSED"
	TextCodeAlreadyInitialized = "FORM_ALREADY_INITIALIZED"
)

// ErrInvalidTransition is returned when an action slot is asked to move to a
// status its current status does not allow (e.g. begin while pending).
var ErrInvalidTransition = goerrors.New("invalid action state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrLockedField is returned when user input targets a prefilled field.
var ErrLockedField = goerrors.New("field is locked", goerrors.CategoryValidation).
	WithTextCode(TextCodeLockedField).
	WithCode(goerrors.CodeBadRequest)

// ErrUnknownField is returned for fields the flow does not declare.
var ErrUnknownField = goerrors.New("unknown form field", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnknownField).
	WithCode(goerrors.CodeBadRequest)

// ErrValidation is returned when a local precondition blocks a remote call.
var ErrValidation = goerrors.New("form validation failed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrFlowBusy is returned when another action of the same flow is pending.
var ErrFlowBusy = goerrors.New("another action is in progress", goerrors.CategoryConflict).
	WithTextCode(TextCodeFlowBusy).
	WithCode(goerrors.CodeConflict)

// ErrFlowClosed is returned for operations on a torn down flow.
var ErrFlowClosed = goerrors.New("flow is closed", goerrors.CategoryOperation).
	WithTextCode(TextCodeFlowClosed)

// ErrAlreadyInitialized is returned when a form is initialized twice.
var ErrAlreadyInitialized = goerrors.New("form state already initialized", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyInitialized).
	WithCode(goerrors.CodeConflict)

// withMeta returns a copy of sentinel carrying meta. The copy unwraps to
// sentinel so errors.Is keeps matching.
func withMeta(sentinel *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	clone.Source = sentinel
	return clone.WithMetadata(meta)
}
