package domain

import (
	"errors"
	"fmt"
)

const (
	msgNoResponse   = "No response from server. Please check your connection."
	msgServerError  = "Server error. Please try again."
	msgBadDocument  = "The document could not be annotated: the service returned invalid term data."
	msgUnknownError = "Something went wrong. Please try again."
)

// ValidationError is a caller-side input problem. No request was issued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransportError means no response was received from the backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a non-2xx backend response. Detail holds the server's
// message when it sent one.
type ServiceError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *ServiceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

// DataIntegrityError reports a malformed annotation. Index is the position of
// the offending record in the payload, or -1 when not applicable.
type DataIntegrityError struct {
	Index  int
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Index < 0 {
		return "invalid annotation: " + e.Reason
	}
	return fmt.Sprintf("invalid annotation %d: %s", e.Index, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// UserMessage maps err to the message shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		valErr  *ValidationError
		netErr  *TransportError
		svcErr  *ServiceError
		dataErr *DataIntegrityError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &netErr):
		return msgNoResponse
	case errors.As(err, &svcErr):
		if svcErr.Detail != "" {
			return svcErr.Detail
		}
		return msgServerError
	case errors.As(err, &dataErr):
		return msgBadDocument
	}
	return msgUnknownError
}
