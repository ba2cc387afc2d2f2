package domain

import (
	"fmt"
	"time"
)

// Outcome is the closed set of per-peer dispatch results.
type Outcome string

const (
	// OutcomeSuccess means the peer answered within its timeout.
	OutcomeSuccess Outcome = "success"
	// OutcomeTimeout means the peer did not answer before its timeout elapsed.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeTransportError means delivery or decoding failed.
	OutcomeTransportError Outcome = "transport_error"
)

// ErrorKind classifies why a peer produced no answer.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindConnectionRefused ErrorKind = "connection_refused"
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	ErrorKindUnavailable       ErrorKind = "unavailable"
	ErrorKindCircuitOpen       ErrorKind = "circuit_open"
	ErrorKindRateLimited       ErrorKind = "rate_limited"
	ErrorKindCancelled         ErrorKind = "cancelled"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// DispatchResult is the outcome of sending a task to one peer.
// The dispatcher returns one per dispatched peer in dispatch order; the
// index alignment is what attributes scores to the right peer downstream.
type DispatchResult struct {
	PeerID    string        `json:"peer_id"`
	Outcome   Outcome       `json:"outcome"`
	RawAnswer *string       `json:"raw_answer,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Succeeded builds a success slot carrying the peer's raw answer.
func Succeeded(peerID, answer string, elapsed time.Duration) DispatchResult {
	return DispatchResult{PeerID: peerID, Outcome: OutcomeSuccess, RawAnswer: &answer, Elapsed: elapsed}
}

// TimedOut builds a timeout slot.
func TimedOut(peerID string, elapsed time.Duration) DispatchResult {
	return DispatchResult{PeerID: peerID, Outcome: OutcomeTimeout, ErrorKind: ErrorKindTimeout, Elapsed: elapsed}
}

// TransportFailed builds a transport-error slot with the given classification.
func TransportFailed(peerID string, kind ErrorKind, elapsed time.Duration) DispatchResult {
	if kind == ErrorKindNone {
		kind = ErrorKindUnknown
	}
	return DispatchResult{PeerID: peerID, Outcome: OutcomeTransportError, ErrorKind: kind, Elapsed: elapsed}
}

// Answer returns the raw answer when the peer succeeded.
func (r DispatchResult) Answer() (string, bool) {
	if r.Outcome != OutcomeSuccess || r.RawAnswer == nil {
		return "", false
	}
	return *r.RawAnswer, true
}

// Failed reports whether the slot carries an error instead of an answer.
func (r DispatchResult) Failed() bool {
	return r.Outcome != OutcomeSuccess || r.ErrorKind != ErrorKindNone
}

// Validate checks that the variant is well-formed.
func (r DispatchResult) Validate() error {
	if r.PeerID == "" {
		return fmt.Errorf("%w: dispatch result without peer id", ErrInvalidArgument)
	}
	switch r.Outcome {
	case OutcomeSuccess:
		if r.RawAnswer == nil {
			return fmt.Errorf("%w: peer %s: success without answer", ErrInvalidArgument, r.PeerID)
		}
	case OutcomeTimeout, OutcomeTransportError:
		if r.ErrorKind == ErrorKindNone {
			return fmt.Errorf("%w: peer %s: %s without error kind", ErrInvalidArgument, r.PeerID, r.Outcome)
		}
	default:
		return fmt.Errorf("%w: peer %s: unknown outcome %q", ErrInvalidArgument, r.PeerID, r.Outcome)
	}
	return nil
}

// CountFailures returns how many results carry an error.
func CountFailures(results []DispatchResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
