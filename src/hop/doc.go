// Package hop defines what crosses a trust boundary when a walk moves from one
// community to another.
//
// A Message describes one proposed transition: who proposes it (Origin), where
// the walk stands (CurrentNode), where it wants to go (NextNode), how many
// hops it may still take, the opaque authorization Token, free-form
// Attributes, and the freshness markers Timestamp and Nonce. The proposing
// community signs the canonical encoding of every field and ships the result
// as a SignedMessage.
//
// The receiving community answers with an Ack that it signs in turn. A
// rejected hop carries a Kind naming the reason; an accepted one carries the
// rest of the walk as the receiver executed it.
package hop
