package net

import (
	"time"

	"github.com/mosaicnetworks/crosswalk/src/hop"
)

// HopRequest carries a signed cross-community hop, or a signed termination
// notice when the message has no next node.
type HopRequest struct {
	Hop hop.SignedMessage
	// Timeout is how long the sender waits for the ack. The receiver has to
	// answer within it, whatever happens further down the walk.
	Timeout time.Duration
}

// HopResponse carries the receiver's signed verdict.
type HopResponse struct {
	Ack hop.SignedAck
}
