package transport

import (
	"context"
	"errors"
	"io"
	"net"
)

func errorIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsClosed reports whether err means the transport was shut down (as
// opposed to a transient transport failure). The pin tasks use it to tell
// an ordered stop from an error worth reporting through the callback.
func IsClosed(err error) bool {
	return errorIsAny(err, io.EOF, net.ErrClosed, context.Canceled, context.DeadlineExceeded)
}
