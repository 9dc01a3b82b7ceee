package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Store errors; these fail the pipeline closed
	ErrAdEventsUnavailable    = errors.New("ad event history unavailable")
	ErrCreativeAdsUnavailable = errors.New("creative ad catalog unavailable")

	// Request errors
	ErrRequestNil = errors.New("request is nil")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
