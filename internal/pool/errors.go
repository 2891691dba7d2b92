package pool

import (
	"errors"
	"fmt"
)

// ErrUnknownServer is returned by Release for a URL the pool was not built with.
var ErrUnknownServer = errors.New("unknown server")

// manifestError wraps a failed manifest fetch for one server.
type manifestError struct {
	url string
	err error
}

func (e manifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.url, e.err)
}

func (e manifestError) Unwrap() error { return e.err }

// statusError reports a non-2xx manifest response.
type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }
