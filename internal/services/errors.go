package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceFetch   = errors.New("source fetch error")
	ErrTransform     = errors.New("transform error")
	ErrGeneration    = errors.New("generation error")
	ErrPersistence   = errors.New("persistence error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind is a stable label for a failure class, used in logs and job rows.
type ErrorKind string

const (
	KindSourceFetch   ErrorKind = "source_fetch"
	KindTransform     ErrorKind = "transform"
	KindGeneration    ErrorKind = "generation"
	KindPersistence   ErrorKind = "persistence"
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindTransient     ErrorKind = "transient"
)

// ServiceError carries the stage context of a failure alongside its marker.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a failure used for logging and for
// the reason stored on a failed job.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Code      string
	Hint      string
	Cause     error
}

// Details extracts the innermost service error from err. Errors that were
// never wrapped are reported as transient with their own text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svc *ServiceError
	if !errors.As(err, &svc) {
		return ErrorDetails{
			Kind:    KindTransient,
			Message: strings.TrimSpace(err.Error()),
			Code:    string(KindTransient),
			Hint:    hintFor(KindTransient),
			Cause:   err,
		}
	}
	for svc.Cause != nil {
		var inner *ServiceError
		if !errors.As(svc.Cause, &inner) {
			break
		}
		svc = inner
	}

	kind := KindOf(svc.Marker)
	message := svc.Message
	if svc.Cause != nil {
		cause := strings.TrimSpace(svc.Cause.Error())
		switch {
		case message == "":
			message = cause
		case cause != "":
			message = message + ": " + cause
		}
	}
	if message == "" {
		message = buildDetail(svc.Stage, svc.Operation, "")
	}
	return ErrorDetails{
		Kind:      kind,
		Stage:     svc.Stage,
		Operation: svc.Operation,
		Message:   message,
		Code:      string(kind),
		Hint:      hintFor(kind),
		Cause:     svc.Cause,
	}
}

// KindOf maps an error to its kind by marker.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceFetch):
		return KindSourceFetch
	case errors.Is(err, ErrTransform):
		return KindTransform
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	default:
		return KindTransient
	}
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case KindSourceFetch:
		return "check the caption provider keys and whether the content has captions"
	case KindGeneration:
		return "check llm credentials, model name, and provider status"
	case KindPersistence:
		return "check the database path and disk space"
	case KindValidation:
		return "check the submitted url or configuration value"
	case KindQuotaExceeded:
		return "raise generation.owner_quota or wait for usage to reset"
	case KindNotFound:
		return "verify the job id with scribe status"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
