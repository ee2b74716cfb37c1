package domain

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable indicates a provider is unconfigured or rejected the
// request. Call placement treats it as a signal to fall back, never as a hard
// failure surfaced to the caller.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrCallNotFound indicates the referenced voice call does not exist.
var ErrCallNotFound = errors.New("voice call not found")

// InvalidTransitionError is returned when a requested state change is not
// permitted from the call's current persisted state. Late or duplicate webhook
// deliveries surface as this error and must be acked, not retried.
type InvalidTransitionError struct {
	CallID string
	From   CallStatus
	To     CallStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for call %s: %s -> %s", e.CallID, e.From, e.To)
}

// EndpointAttempt records one candidate endpoint tried during negotiation.
// Attempts are diagnostic only and never persisted.
type EndpointAttempt struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error,omitempty"`
	Success  bool   `json:"success"`
}

// NegotiationError is returned when every candidate endpoint failed. It
// carries the full attempt list so callers can produce actionable manual-setup
// instructions instead of a bare error.
type NegotiationError struct {
	Attempts []EndpointAttempt
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("all %d candidate endpoints failed", len(e.Attempts))
}

// SchedulingConflictError is returned by the appointments collaborator when
// the requested slot conflicts with an existing appointment. The pipeline
// treats it as non-fatal.
type SchedulingConflictError struct {
	Detail string
}

func (e *SchedulingConflictError) Error() string {
	return fmt.Sprintf("scheduling conflict: %s", e.Detail)
}
