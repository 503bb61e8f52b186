package browser

import (
	"errors"
	"fmt"
	"strings"
)

// Kind describes a stable automation failure category shared across sessions.
type Kind string

// Error returns the kind code string.
func (kind Kind) Error() string {
	return string(kind)
}

// Code exposes the kind code string.
func (kind Kind) Code() string {
	return string(kind)
}

// Automation failure kinds.
const (
	ErrNavigation      Kind = "navigation"
	ErrEvaluation      Kind = "evaluation"
	ErrElementNotFound Kind = "element_not_found"
	ErrIO              Kind = "io"
	ErrSession         Kind = "session"
)

// Operation identifies the browser operation producing an AutomationError.
type Operation string

// Browser operations.
const (
	OperationLaunch     Operation = "browser.launch"
	OperationNavigate   Operation = "browser.navigate"
	OperationEvaluate   Operation = "browser.evaluate"
	OperationClick      Operation = "browser.click"
	OperationSelect     Operation = "browser.select"
	OperationPressKey   Operation = "browser.press_key"
	OperationScreenshot Operation = "browser.screenshot"
	OperationClose      Operation = "browser.close"
)

// AutomationError annotates a browser failure with its kind, operation, and subject.
type AutomationError struct {
	Kind      Kind
	Operation Operation
	Subject   string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (automationError AutomationError) Error() string {
	message := automationError.Message
	if len(message) == 0 && automationError.Cause != nil {
		message = automationError.Cause.Error()
	}
	if len(message) == 0 {
		message = string(automationError.Kind)
	}
	if len(automationError.Subject) == 0 {
		return fmt.Sprintf("%s: %s", automationError.Operation, message)
	}
	return fmt.Sprintf("%s[%s]: %s", automationError.Operation, automationError.Subject, message)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (automationError AutomationError) Unwrap() []error {
	unwrapped := []error{automationError.Kind}
	if automationError.Cause != nil {
		unwrapped = append(unwrapped, automationError.Cause)
	}
	return unwrapped
}

// NewError wraps cause into an AutomationError, using the cause text as the message.
func NewError(kind Kind, operation Operation, subject string, cause error) error {
	automationError := AutomationError{Kind: kind, Operation: operation, Subject: subject, Cause: cause}
	if cause != nil {
		automationError.Message = strings.TrimSpace(cause.Error())
	}
	return automationError
}

// NewErrorMessage builds an AutomationError without an underlying cause.
func NewErrorMessage(kind Kind, operation Operation, subject string, message string) error {
	return AutomationError{Kind: kind, Operation: operation, Subject: subject, Message: message}
}

// KindOf reports the automation kind carried by err.
func KindOf(err error) (Kind, bool) {
	var automationError AutomationError
	if errors.As(err, &automationError) {
		return automationError.Kind, true
	}
	var kind Kind
	if errors.As(err, &kind) {
		return kind, true
	}
	return "", false
}

// MessageOf returns the human readable failure message carried by err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var automationError AutomationError
	if errors.As(err, &automationError) && len(automationError.Message) > 0 {
		return automationError.Message
	}
	return err.Error()
}
