// Package walk implements the coordinator that drives random walks across
// communities.
//
// A walk starts on a node the local community owns, with a hop budget and an
// authorization token. While the selected neighbor is owned by the same
// community the coordinator simply moves there, spending one hop. When the
// neighbor belongs to another community, the coordinator builds a hop.Message
// with a fresh nonce and the current time, signs it, and sends it to the owner
// through the transport. It then waits, for at most the hop timeout, for a
// signed acknowledgement.
//
// The receiving coordinator checks, in this order: the message schema, that
// the origin is in its peer directory, the signature, the timestamp, the
// nonce, and the token. Any failure is reported back as a rejection and the
// walk stops at the last node it reached. If everything passes, the receiver
// moves the walk to the proposed node and keeps walking from there; its
// acknowledgement carries the rest of the path, so the community that started
// the walk learns where it ended.
//
//	Local --same community--> Local
//	Local --foreign neighbor--> ProposingHop --signed--> AwaitingVerification
//	AwaitingVerification --ack--> Accepted | Rejected*
//	Local --no hops or no neighbor--> Terminated
package walk
