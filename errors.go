package cfddns

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoAddress is returned by resolvers when no usable address was found.
	ErrNoAddress = errors.New("no address could be resolved")

	ErrNoCredentials = errors.New("either an API token or an email and API key pair is required")

	// ErrUnexpected wraps a panic recovered during a reconciliation pass.
	ErrUnexpected = errors.New("unexpected failure")
)

// UpdateError is a record update the registry rejected.
type UpdateError struct {
	Errors []ResponseError
}

func (e *UpdateError) Error() string {
	if len(e.Errors) == 0 {
		return "update rejected by registry"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, re := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", re.Code, re.Message))
	}
	return "update rejected by registry: " + strings.Join(msgs, "; ")
}
