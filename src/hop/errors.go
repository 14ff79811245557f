package hop

import (
	"errors"
	"fmt"
)

// Kind names why a hop, or a walk, stopped.
type Kind string

const (
	// UnknownOrigin: the claimed origin is not in the receiver's directory.
	UnknownOrigin Kind = "UnknownOrigin"
	// BadSignature: the signature does not match the origin's key.
	BadSignature Kind = "BadSignature"
	// StaleOrFutureTimestamp: the timestamp is outside the freshness window.
	StaleOrFutureTimestamp Kind = "StaleOrFutureTimestamp"
	// ReplayDetected: the nonce was already accepted.
	ReplayDetected Kind = "ReplayDetected"
	// InvalidToken: the receiver's policy refuses the token.
	InvalidToken Kind = "InvalidToken"
	// HopBudgetExhausted: no hops remain.
	HopBudgetExhausted Kind = "HopBudgetExhausted"
	// NoCandidateNeighbor: the current node has no neighbor to move to.
	NoCandidateNeighbor Kind = "NoCandidateNeighbor"
	// TransportTimeout: no answer arrived within the hop timeout.
	TransportTimeout Kind = "TransportTimeout"
	// MalformedMessage: the message violates the schema.
	MalformedMessage Kind = "MalformedMessage"
)

// Retryable reports whether a hop that failed with k may be attempted again
// with a freshly minted message.
func (k Kind) Retryable() bool {
	return k == TransportTimeout
}

// Error is a hop failure of a known Kind.
type Error struct {
	Kind Kind
	Msg  string
}

// Errorf builds an Error of the given Kind.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// KindOf returns the Kind of the first Error in err's chain, or the empty Kind
// if there is none.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return ""
}

// IsKind reports whether err carries the Kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
