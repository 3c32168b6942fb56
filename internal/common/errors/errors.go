// Package errors provides the structured error type shared by the notifier
// channels, the HTTP API and the order-event job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Channel errors
const (
	ErrCodeNoActiveSubscription  ErrorCode = "NO_ACTIVE_SUBSCRIPTION"
	ErrCodeSubscriptionGone      ErrorCode = "PUSH_SUBSCRIPTION_GONE"
	ErrCodePushDeliveryFailed    ErrorCode = "PUSH_DELIVERY_FAILED"
	ErrCodePushDisabled          ErrorCode = "PUSH_DISABLED"
	ErrCodeInvalidSubscription   ErrorCode = "INVALID_SUBSCRIPTION"
	ErrCodeEmailSendFailed       ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeEmailDisabled         ErrorCode = "EMAIL_DISABLED"
	ErrCodeSMSSendFailed         ErrorCode = "SMS_SEND_FAILED"
	ErrCodeSocketWriteFailed     ErrorCode = "SOCKET_WRITE_FAILED"
	ErrCodeActorNotFound         ErrorCode = "ACTOR_NOT_FOUND"
	ErrCodeInvalidNotificationIn ErrorCode = "INVALID_NOTIFICATION_INPUT"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCacheFailed              ErrorCode = "CACHE_FAILED"
	ErrCodeAuditIndexFailed         ErrorCode = "AUDIT_INDEX_FAILED"
	ErrCodeUnauthorized             ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden                ErrorCode = "FORBIDDEN"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so package-level sentinels work
// with errors.Is regardless of details.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if !stderrors.As(err, &stdErr) {
		return false
	}
	return stdErr.Code == code
}

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrNoActiveSubscription = &StandardError{Code: ErrCodeNoActiveSubscription, Message: "no_active_subscription"}
	ErrSubscriptionGone     = &StandardError{Code: ErrCodeSubscriptionGone, Message: "push subscription is gone"}
	ErrPushDisabled         = &StandardError{Code: ErrCodePushDisabled, Message: "push notifications are disabled"}
	ErrEmailDisabled        = &StandardError{Code: ErrCodeEmailDisabled, Message: "email notifications are disabled"}
	ErrActorNotFound        = &StandardError{Code: ErrCodeActorNotFound, Message: "actor not found"}
)

// NewNoActiveSubscriptionError is returned when an actor has no active push subscription.
func NewNoActiveSubscriptionError(actorID int64) *StandardError {
	return newError(ErrCodeNoActiveSubscription, "no_active_subscription",
		fmt.Sprintf("actorId: %d", actorID), false, nil)
}

// NewSubscriptionGoneError is returned when the push service reports the endpoint expired.
func NewSubscriptionGoneError(actorID int64, status int) *StandardError {
	return newError(ErrCodeSubscriptionGone, "push subscription is gone",
		fmt.Sprintf("actorId: %d, status: %d", actorID, status), false, nil)
}

// NewPushDeliveryFailedError wraps a transport failure. Retryable.
func NewPushDeliveryFailedError(actorID int64, err error) *StandardError {
	return newError(ErrCodePushDeliveryFailed, "push delivery failed",
		fmt.Sprintf("actorId: %d, error: %v", actorID, err), true, err)
}

func NewPushDisabledError() *StandardError {
	return newError(ErrCodePushDisabled, "push notifications are disabled", "VAPID keys not configured", false, nil)
}

// NewInvalidSubscriptionError rejects a malformed subscription descriptor.
func NewInvalidSubscriptionError(details string) *StandardError {
	return newError(ErrCodeInvalidSubscription, "invalid push subscription", details, false, nil)
}

// NewEmailSendFailedError wraps an SES or SMTP failure.
func NewEmailSendFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeEmailSendFailed, "email delivery failed",
		fmt.Sprintf("provider: %s, error: %v", provider, err), true, err)
}

func NewEmailDisabledError() *StandardError {
	return newError(ErrCodeEmailDisabled, "email notifications are disabled", "", false, nil)
}

// NewSMSSendFailedError wraps an SNS publish failure.
func NewSMSSendFailedError(err error) *StandardError {
	return newError(ErrCodeSMSSendFailed, "sms delivery failed", err.Error(), true, err)
}

// NewSocketWriteFailedError wraps a failed websocket write.
func NewSocketWriteFailedError(actorID int64, err error) *StandardError {
	return newError(ErrCodeSocketWriteFailed, "socket write failed",
		fmt.Sprintf("actorId: %d, error: %v", actorID, err), false, err)
}

func NewActorNotFoundError(actorID int64) *StandardError {
	return newError(ErrCodeActorNotFound, "actor not found", fmt.Sprintf("actorId: %d", actorID), false, nil)
}

// NewInvalidNotificationInputError rejects malformed job or API input.
func NewInvalidNotificationInputError(details string) *StandardError {
	return newError(ErrCodeInvalidNotificationIn, "invalid notification input", details, false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryName string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", queryName, err.Error()), true, err)
}

func NewCacheFailedError(op string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "cache operation failed",
		fmt.Sprintf("op: %s, error: %v", op, err), true, err)
}

func NewAuditIndexFailedError(err error) *StandardError {
	return newError(ErrCodeAuditIndexFailed, "audit index failed", err.Error(), true, err)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Authentication failed", details, false, nil)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Forbidden", details, false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed:
		return 3
	case ErrCodeCacheFailed:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory groups codes for metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PUSH") || strings.Contains(codeStr, "SUBSCRIPTION"):
		return "PUSH"
	case strings.HasPrefix(codeStr, "EMAIL"):
		return "EMAIL"
	case strings.HasPrefix(codeStr, "SMS"):
		return "SMS"
	case strings.HasPrefix(codeStr, "SOCKET"):
		return "REALTIME"
	case strings.HasPrefix(codeStr, "DATABASE") || strings.HasPrefix(codeStr, "QUERY") || strings.HasPrefix(codeStr, "CACHE"):
		return "STORAGE"
	case codeStr == string(ErrCodeUnauthorized) || codeStr == string(ErrCodeForbidden):
		return "AUTH"
	case strings.HasPrefix(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
