// Package net implements the transports communities use to submit hops to one
// another.
//
// A Transport sends a HopRequest, carrying a signed hop message, to the
// community listening at a target address and waits for the HopResponse that
// carries its signed acknowledgement. Inbound requests are delivered on the
// Consumer channel as RPCs, each with its own response channel. There are
// three implementations:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// - QUIC: communicating over QUIC streams
//
// TCP and QUIC share the NetworkTransport, which pools outbound connections
// per target and frames each request as a type byte followed by the JSON
// encoded request. They differ only in their StreamLayer.
//
// Every call takes a context. Its deadline becomes the I/O deadline of the
// connection; a call that runs out of time fails with ErrTransportTimeout, and
// a cancelled call fails with context.Canceled. Calls without a deadline are
// bounded by the transport's own timeout.
//
// Neither transport encrypts or authenticates traffic: hops and
// acknowledgements carry their own signatures. The QUIC stream layer uses TLS
// only because QUIC requires it, with a throwaway certificate that dialers do
// not verify.
package net
