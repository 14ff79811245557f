package net

import (
	"context"
	"errors"
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrTransportTimeout is returned when no response arrived in time. It
	// wraps the underlying cause.
	ErrTransportTimeout = errors.New("transport timeout")
)

// Transport provides an interface for network transports to allow a community
// to submit hops to other communities and to receive theirs.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other
	// communities can reach us
	AdvertiseAddr() string

	// Hop submits a signed hop to the community listening at target and
	// waits for its signed acknowledgement. The call is bounded by ctx.
	Hop(ctx context.Context, target string, args *HopRequest, resp *HopResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
