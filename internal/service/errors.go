package service

import (
	"errors"
	"fmt"
)

// PreconditionError reports a request that cannot run against the current
// state. Nothing is written when it is returned.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

var (
	ErrQuestionnaireNotFound = &PreconditionError{Reason: "questionnaire not found"}
	ErrNoExternalForm        = &PreconditionError{Reason: "questionnaire has not been converted to an external form"}
	ErrAlreadyConverted      = &PreconditionError{Reason: "questionnaire already has an external form"}
	ErrNoResponses           = &PreconditionError{Reason: "questionnaire has no responses to export"}
	ErrInvalidQuestionnaire  = errors.New("invalid questionnaire")
	ErrInvalidRunType        = errors.New("invalid sync run type")
)

// CredentialRequiredError means the caller has to go through the provider
// authorization flow. AuthURL is always set.
type CredentialRequiredError struct {
	AuthURL string
	Cause   error
}

func (e *CredentialRequiredError) Error() string {
	if e.Cause != nil {
		return "google authorization required: " + e.Cause.Error()
	}
	return "google authorization required"
}

func (e *CredentialRequiredError) Unwrap() error {
	return e.Cause
}

// ProviderFailedError wraps a non-authorization failure of the external
// provider during Op (convert, sync or export).
type ProviderFailedError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ProviderFailedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ProviderFailedError) Unwrap() error {
	return e.Err
}
