package authstub

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrAccountNotFound is returned when no account matches an email.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountExists is returned when registering a known email.
var ErrAccountExists = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict)

// ErrNoPendingCode is returned when an account has no code to redeem.
var ErrNoPendingCode = goerrors.New("no pending activation code, request a new one", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCode is returned for malformed, superseded or mismatched codes.
var ErrInvalidCode = goerrors.New("invalid activation code", goerrors.CategoryValidation).
	WithTextCode("INVALID_ACTIVATION_CODE").
	WithCode(goerrors.CodeBadRequest)

// ErrCodeExpired is returned when the pending code is older than the TTL.
var ErrCodeExpired = goerrors.New("activation code expired, request a new one", goerrors.CategoryValidation).
	WithTextCode("ACTIVATION_CODE_EXPIRED").
	WithCode(goerrors.CodeBadRequest)

// ErrAlreadyActive is returned when activating or resending for an active account.
var ErrAlreadyActive = goerrors.New("account is already active", goerrors.CategoryConflict).
	WithTextCode("ACCOUNT_ALREADY_ACTIVE").
	WithCode(goerrors.CodeConflict)

// ErrInvalidEmail is returned when an email does not parse.
var ErrInvalidEmail = goerrors.New("invalid email address", goerrors.CategoryValidation).
	WithTextCode("INVALID_EMAIL").
	WithCode(goerrors.CodeBadRequest)

func withMeta(sentinel *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	clone.Source = sentinel
	return clone.WithMetadata(meta)
}
