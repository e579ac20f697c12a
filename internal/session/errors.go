package session

import (
	"errors"
	"fmt"
)

// Fatal Connect errors. Each is returned wrapped together with its cause, so
// errors.As still reaches the underlying *signaling.TransportError or pion
// error.
var (
	ErrSDPGeneration     = errors.New("local session description was not generated")
	ErrSignaling         = errors.New("signaling exchange failed")
	ErrRemoteDescription = errors.New("remote description rejected")
	ErrAlreadyConnecting = errors.New("connect already in progress")
	ErrAlreadyConnected  = errors.New("connect already ran on this orchestrator")
	ErrClosed            = errors.New("orchestrator is closed")
)

func fail(kind error, msg string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, msg)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, cause)
}
