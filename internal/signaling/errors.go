package signaling

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrProtocolViolation is returned when the station's answer is malformed or
// incomplete (wrong type, missing sdp, undecodable JSON).
var ErrProtocolViolation = errors.New("signaling protocol violation")

// ErrTrickleDelivery marks a candidate that could not be delivered. It is
// only ever reported inside a TrickleResult.
var ErrTrickleDelivery = errors.New("candidate delivery failed")

// TransportError is a non-2xx response from the signaling endpoint.
type TransportError struct {
	URL    string
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("signaling endpoint %s returned %d %s: %s",
		e.URL, e.Status, http.StatusText(e.Status), e.Body)
}

// TrickleStatus is the outcome of one candidate delivery attempt.
type TrickleStatus int

const (
	TrickleSent TrickleStatus = iota
	TrickleSkipped
	TrickleFailed
)

func (s TrickleStatus) String() string {
	switch s {
	case TrickleSent:
		return "sent"
	case TrickleSkipped:
		return "skipped"
	case TrickleFailed:
		return "failed"
	}
	return fmt.Sprintf("TrickleStatus(%d)", int(s))
}

// TrickleResult reports a candidate delivery. Err wraps ErrTrickleDelivery
// when Status is TrickleFailed. Callers may log it; it never aborts a session.
type TrickleResult struct {
	Status TrickleStatus
	Err    error
}
