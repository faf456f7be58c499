// internal/errors/errors.go
package appErrors

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrScheduledMessageNotFound is returned when no row has the given id.
type ErrScheduledMessageNotFound struct {
	ID string
}

func (e *ErrScheduledMessageNotFound) Error() string {
	return fmt.Sprintf("scheduled message with ID %s not found", e.ID)
}

func NewScheduledMessageNotFound(id string) error {
	return &ErrScheduledMessageNotFound{ID: id}
}

// NotPendingError rejects edits of a message that already left PENDING.
type NotPendingError struct {
	ID     string
	Status string
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("scheduled message %s is %s, only PENDING messages can be edited", e.ID, e.Status)
}

func NewNotPending(id, status string) error {
	return &NotPendingError{ID: id, Status: status}
}

// ValidationError is a caller input problem.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TenantResolutionError means a message references a tenant row that is gone.
type TenantResolutionError struct {
	TenantID string
}

func (e *TenantResolutionError) Error() string {
	return fmt.Sprintf("missing credentials: tenant %s not found", e.TenantID)
}

func NewTenantResolution(tenantID string) error {
	return &TenantResolutionError{TenantID: tenantID}
}

// AttachmentFetchError covers unreachable and non-success attachment URLs.
type AttachmentFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *AttachmentFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("attachment fetch failed: %s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("attachment fetch failed: %s: %v", e.URL, e.Err)
}

func (e *AttachmentFetchError) Unwrap() error { return e.Err }

func NewAttachmentStatus(url string, status int) error {
	return &AttachmentFetchError{URL: url, StatusCode: status}
}

func NewAttachmentFetch(url string, err error) error {
	return &AttachmentFetchError{URL: url, Err: err}
}

// DeliveryError is a non-2xx answer from the delivery endpoint.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery endpoint error: %d - %s", e.StatusCode, e.Body)
}

func NewDelivery(status int, body string) error {
	return &DeliveryError{StatusCode: status, Body: body}
}

// TransportError is a network level failure talking to a remote system.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	var nf *ErrScheduledMessageNotFound
	return errors.As(err, &nf)
}

func IsNotPending(err error) bool {
	var np *NotPendingError
	return errors.As(err, &np)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Truncate bounds a diagnostic to max characters without splitting a rune.
// Invalid UTF-8 becomes U+FFFD and NUL bytes are dropped, since Postgres
// TEXT accepts neither.
func Truncate(msg string, max int) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	msg = strings.ReplaceAll(msg, "\x00", "")
	msg = strings.TrimSpace(msg)
	if max <= 0 || utf8.RuneCountInString(msg) <= max {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:max])
}
