package channel

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEndpoint  = errors.New("channel endpoint host or port missing")
	ErrAlreadyConnected = errors.New("channel is already connected")
	ErrClosed           = errors.New("channel is closed")
)

// ConnectionError reports a failed attempt to open the channel.
type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
