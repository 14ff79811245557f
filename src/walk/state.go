package walk

import (
	"fmt"

	"github.com/mosaicnetworks/crosswalk/src/hop"
)

// State is a position of a walk in the coordinator's state machine.
type State uint32

const (
	// Local is the state of a walk advancing inside its current community.
	Local State = iota

	// ProposingHop is the state in which the next node belongs to another
	// community and a hop message is being built and signed.
	ProposingHop

	// AwaitingVerification is the state in which a signed hop has been sent and
	// the receiver's acknowledgement is outstanding.
	AwaitingVerification

	// Accepted is the state of a hop the receiver verified and took over.
	Accepted

	// RejectedAuth: unknown origin, or a signature that does not verify.
	RejectedAuth

	// RejectedReplay: the receiver had already accepted the nonce.
	RejectedReplay

	// RejectedTokenInvalid: the receiver's policy refused the token.
	RejectedTokenInvalid

	// RejectedHopBudget: the hop arrived without any hop left to take.
	RejectedHopBudget

	// RejectedTimestamp: the hop was stale, or from the future.
	RejectedTimestamp

	// RejectedMalformed: the hop violated the message schema.
	RejectedMalformed

	// RejectedTransport: no acknowledgement arrived in time.
	RejectedTransport

	// Terminated is the state of a walk that ran out of hops or neighbors.
	Terminated
)

var stateNames = map[State]string{
	Local:                "Local",
	ProposingHop:         "ProposingHop",
	AwaitingVerification: "AwaitingVerification",
	Accepted:             "Accepted",
	RejectedAuth:         "RejectedAuth",
	RejectedReplay:       "RejectedReplay",
	RejectedTokenInvalid: "RejectedTokenInvalid",
	RejectedHopBudget:    "RejectedHopBudget",
	RejectedTimestamp:    "RejectedTimestamp",
	RejectedMalformed:    "RejectedMalformed",
	RejectedTransport:    "RejectedTransport",
	Terminated:           "Terminated",
}

// String returns the string representation of a State
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseState is the inverse of String.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// MarshalText encodes a State by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a State from its name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsRejected reports whether s ends a walk on a refused hop.
func (s State) IsRejected() bool {
	return s >= RejectedAuth && s <= RejectedTransport
}

// IsFinal reports whether a walk in state s has stopped.
func (s State) IsFinal() bool {
	return s == Terminated || s.IsRejected()
}

// StateFor maps the Kind of a failed hop, or of a walk's end, to the state the
// walk stops in.
func StateFor(kind hop.Kind) State {
	switch kind {
	case hop.UnknownOrigin, hop.BadSignature:
		return RejectedAuth
	case hop.StaleOrFutureTimestamp:
		return RejectedTimestamp
	case hop.ReplayDetected:
		return RejectedReplay
	case hop.InvalidToken:
		return RejectedTokenInvalid
	case hop.HopBudgetExhausted:
		return RejectedHopBudget
	case hop.TransportTimeout:
		return RejectedTransport
	case hop.MalformedMessage:
		return RejectedMalformed
	default:
		return Terminated
	}
}
