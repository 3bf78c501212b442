package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrObjectNotFound        = errors.New("object not found")
	ErrAccessDenied          = errors.New("access denied")
	ErrStorageIO             = errors.New("storage io failure")
	ErrModelThrottled        = errors.New("model throttled")
	ErrModelInvocationFailed = errors.New("model invocation failed")
	ErrParse                 = errors.New("malformed model response")
	ErrExtraction            = errors.New("content extraction failed")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrAlreadyInFlight       = errors.New("document already in flight")
	ErrInvalidInput          = errors.New("invalid input")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
