package entities

import "fmt"

// TransportError is the uniform failure returned by the backend client.
// Detail is the human-readable text surfaced to the user: the backend's
// error body when it had one, a generic transport message otherwise.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	return e.Detail
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError builds a TransportError, falling back to a generic
// detail when the backend did not provide one.
func NewTransportError(op string, status int, detail string, err error) *TransportError {
	if detail == "" {
		if status > 0 {
			detail = fmt.Sprintf("backend returned status %d", status)
		} else {
			detail = "unable to reach backend"
			if err != nil {
				detail = fmt.Sprintf("unable to reach backend: %v", err)
			}
		}
	}
	return &TransportError{Op: op, StatusCode: status, Detail: detail, Err: err}
}
