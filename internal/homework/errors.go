package homework

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed covers transport failures, timeouts and non-2xx replies.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrMalformedResponse means the payload or a record has the wrong shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingField means a required field is absent from the response or a record.
	ErrMissingField = errors.New("missing field")
	// ErrUnknownStatus means the status code is not in the catalog.
	ErrUnknownStatus = errors.New("undocumented homework status")
	// ErrDeliveryFailed means the messaging platform did not confirm a send.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// Kind is the error taxonomy used in logs, metrics and diagnostics.
type Kind string

const (
	KindNone              Kind = ""
	KindFetchFailed       Kind = "fetch_failed"
	KindMalformedResponse Kind = "malformed_response"
	KindMissingField      Kind = "missing_field"
	KindUnknownStatus     Kind = "unknown_status"
	KindDeliveryFailed    Kind = "delivery_failed"
	KindOther             Kind = "other"
)

// KindOf classifies err. Nil maps to KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrFetchFailed):
		return KindFetchFailed
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrMissingField):
		return KindMissingField
	case errors.Is(err, ErrUnknownStatus):
		return KindUnknownStatus
	case errors.Is(err, ErrDeliveryFailed):
		return KindDeliveryFailed
	default:
		return KindOther
	}
}

// FieldError names a required field that is absent.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string { return fmt.Sprintf("missing field %q", e.Field) }

func (e *FieldError) Unwrap() error { return ErrMissingField }

// StatusError reports a status code that the catalog doesn't know.
type StatusError struct {
	Code string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownStatus.Error(), e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnknownStatus }

// ShapeError reports a value of the wrong JSON type. Field is "(root)" for the
// payload itself.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedResponse.Error(), e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedResponse.Error(), e.Field, e.Reason)
}

func (e *ShapeError) Unwrap() error { return ErrMalformedResponse }

// FetchError wraps a transport failure. Both ErrFetchFailed and the cause
// are reachable through errors.Is/As.
type FetchError struct {
	Cause error
}

func (e *FetchError) Error() string {
	if e.Cause == nil {
		return ErrFetchFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrFetchFailed.Error(), e.Cause)
}

func (e *FetchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Cause}
}

// DeliveryError wraps a failed send.
type DeliveryError struct {
	Cause error
}

func (e *DeliveryError) Error() string {
	if e.Cause == nil {
		return ErrDeliveryFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrDeliveryFailed.Error(), e.Cause)
}

func (e *DeliveryError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDeliveryFailed}
	}
	return []error{ErrDeliveryFailed, e.Cause}
}

// Stage names the step of a cycle that failed.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageExtract  Stage = "extract"
	StageDeliver  Stage = "deliver"
)

// StageError tags an error with the cycle step that produced it. It is
// transparent to errors.Is/As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded on err, or "" when there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
