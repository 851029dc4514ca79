// Package errors provides structured error handling for the churnflow
// workflow. Error types carry the identifiers of the cloud resources they
// relate to (training jobs, endpoints, buckets) and integrate with zerolog
// for structured output and with cockroachdb/errors for stack traces.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Workflow error types
//
// ===========================================================================

// ValidationError indicates that a configuration or hyperparameter value
// failed validation before any platform call was made.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("churnflow: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds structured validation context to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace attached.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError indicates an argument value that is malformed or out of range.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("churnflow: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// DimensionError indicates that tabular input has an unexpected shape,
// for example a CSV row whose column count differs from the header.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("churnflow: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds structured dimension context to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// NotReadyError indicates that a pipeline stage was invoked before the
// resource it depends on exists, for example requesting predictions before
// an endpoint has been deployed.
type NotReadyError struct {
	Resource string
	Method   string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("churnflow: %s: resource is not ready. Complete the preceding stage before calling %s()", e.Resource, e.Method)
}

// MarshalZerologObject adds structured readiness context to a zerolog event.
func (e *NotReadyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("resource", e.Resource).
		Str("method", e.Method).
		Str("type", "NotReadyError")
}

// NewNotReadyError creates a NotReadyError with a stack trace attached.
func NewNotReadyError(resource, method string) error {
	err := &NotReadyError{Resource: resource, Method: method}
	return errors.WithStack(err)
}

// JobFailedError indicates that a managed training job ended in a terminal
// failure state. Reason carries the platform's FailureReason verbatim.
type JobFailedError struct {
	JobName string
	Status  string
	Reason  string
}

func (e *JobFailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("churnflow: training job %s ended with status %s: %s", e.JobName, e.Status, e.Reason)
	}
	return fmt.Sprintf("churnflow: training job %s ended with status %s", e.JobName, e.Status)
}

// MarshalZerologObject adds structured job context to a zerolog event.
func (e *JobFailedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("job_name", e.JobName).
		Str("status", e.Status).
		Str("reason", e.Reason).
		Str("type", "JobFailedError")
}

// NewJobFailedError creates a JobFailedError with a stack trace attached.
func NewJobFailedError(jobName, status, reason string) error {
	err := &JobFailedError{JobName: jobName, Status: status, Reason: reason}
	return errors.WithStack(err)
}

// EndpointNotReadyError indicates that a hosted endpoint did not reach the
// InService state, either because deployment failed or the wait timed out.
type EndpointNotReadyError struct {
	EndpointName string
	Status       string
	Reason       string
}

func (e *EndpointNotReadyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("churnflow: endpoint %s is not in service (status %s): %s", e.EndpointName, e.Status, e.Reason)
	}
	return fmt.Sprintf("churnflow: endpoint %s is not in service (status %s)", e.EndpointName, e.Status)
}

// MarshalZerologObject adds structured endpoint context to a zerolog event.
func (e *EndpointNotReadyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("endpoint_name", e.EndpointName).
		Str("status", e.Status).
		Str("reason", e.Reason).
		Str("type", "EndpointNotReadyError")
}

// NewEndpointNotReadyError creates an EndpointNotReadyError with a stack
// trace attached.
func NewEndpointNotReadyError(name, status, reason string) error {
	err := &EndpointNotReadyError{EndpointName: name, Status: status, Reason: reason}
	return errors.WithStack(err)
}

// WaitTimeoutError indicates that polling for a long-running platform
// operation exceeded its deadline while the operation was still in flight.
type WaitTimeoutError struct {
	Resource   string
	LastStatus string
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("churnflow: timed out waiting for %s (last status: %s)", e.Resource, e.LastStatus)
}

// NewWaitTimeoutError creates a WaitTimeoutError with a stack trace attached.
func NewWaitTimeoutError(resource, lastStatus string) error {
	err := &WaitTimeoutError{Resource: resource, LastStatus: lastStatus}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches the target error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As reports whether err can be cast to the target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an existing error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Combine returns an error combining both arguments, either of which may be
// nil. Used by best-effort cleanup paths that attempt every step.
func Combine(err, other error) error {
	return errors.CombineErrors(err, other)
}
