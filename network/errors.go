package network

import (
	"errors"
	"fmt"
)

// ErrTimeout is wrapped by errors returned when a fetch exceeds its
// deadline.
var ErrTimeout = errors.New("timed out")

// ErrTooLarge is wrapped by errors returned when a response body is
// larger than the configured limit.
var ErrTooLarge = errors.New("response body exceeds size limit")

// HttpError is a custom error struct that captures details of errors
// coming from pointer sources, artifact storage and nsqd.
type HttpError struct {
	Err        error
	Message    string
	Method     string
	StatusCode int
	URL        string
}

func NewHttpError(message string, err error, method, url string, statusCode int) *HttpError {
	return &HttpError{
		Err:        err,
		Message:    message,
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
	}
}

func (e *HttpError) Unwrap() error {
	return e.Err
}

func (e *HttpError) Error() string {
	return e.Message
}

func (e *HttpError) Detail() string {
	underlyingError := ""
	if e.Err != nil {
		underlyingError = fmt.Sprintf("(Underlying error: %s)", e.Err.Error())
	}
	return fmt.Sprintf(
		"%s: %s returned status %d. Message: %s %s",
		e.Method, e.URL, e.StatusCode, e.Message, underlyingError)
}
