package hop

import (
	"crypto/ecdsa"

	"github.com/mosaicnetworks/crosswalk/src/canonical"
	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
)

// Status is the receiver's verdict on one hop.
type Status string

const (
	// Accepted means the receiver took over the walk.
	Accepted Status = "Accepted"
	// Rejected means the walk stays where it was; Ack.Reason says why.
	Rejected Status = "Rejected"
)

// Ack answers a SignedMessage. Nonce repeats the nonce of the message it
// answers. For an accepted move, Path lists the nodes the receiver visited
// starting with the received node, and RemainingHops, FinalState and
// Termination describe where the walk ended.
type Ack struct {
	Status        Status   `json:"status"`
	Reason        Kind     `json:"reason,omitempty"`
	Detail        string   `json:"detail,omitempty"`
	ReceivedNode  string   `json:"received_node,omitempty"`
	Receiver      string   `json:"receiver"`
	Nonce         string   `json:"nonce"`
	Path          []string `json:"path,omitempty"`
	RemainingHops int      `json:"remaining_hops"`
	FinalState    string   `json:"final_state,omitempty"`
	Termination   Kind     `json:"termination,omitempty"`
}

// Reject builds a rejection of the hop identified by nonce.
func Reject(receiver, nonce string, err error) Ack {
	kind := KindOf(err)
	if kind == "" {
		kind = MalformedMessage
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return Ack{
		Status:   Rejected,
		Reason:   kind,
		Detail:   detail,
		Receiver: receiver,
		Nonce:    nonce,
	}
}

// Err returns nil for an accepted hop and an Error carrying the reason
// otherwise.
func (a *Ack) Err() error {
	if a.Status == Accepted {
		return nil
	}
	kind := a.Reason
	if kind == "" {
		kind = MalformedMessage
	}
	return &Error{Kind: kind, Msg: a.Detail}
}

// CanonicalMap returns the fields covered by the receiver's signature.
func (a *Ack) CanonicalMap() map[string]interface{} {
	path := a.Path
	if path == nil {
		path = []string{}
	}
	return map[string]interface{}{
		"status":         string(a.Status),
		"reason":         string(a.Reason),
		"detail":         a.Detail,
		"received_node":  a.ReceivedNode,
		"receiver":       a.Receiver,
		"nonce":          a.Nonce,
		"path":           path,
		"remaining_hops": a.RemainingHops,
		"final_state":    a.FinalState,
		"termination":    string(a.Termination),
	}
}

// Sign signs a with the receiver's private key.
func (a *Ack) Sign(priv *ecdsa.PrivateKey) (SignedAck, error) {
	data, err := canonical.Encode(a.CanonicalMap())
	if err != nil {
		return SignedAck{}, err
	}
	sig, err := keys.Sign(priv, data)
	if err != nil {
		return SignedAck{}, err
	}
	return SignedAck{Ack: *a, Signature: sig}, nil
}

// SignedAck is an Ack and the receiver's signature over it.
type SignedAck struct {
	Ack       Ack    `json:"ack"`
	Signature []byte `json:"signature"`
}

// Verify checks that the ack was signed by pub and answers the hop with the
// given nonce.
func (s *SignedAck) Verify(pub *ecdsa.PublicKey, nonce string) error {
	data, err := canonical.Encode(s.Ack.CanonicalMap())
	if err != nil {
		return Errorf(MalformedMessage, "encoding ack: %v", err)
	}
	if !keys.Verify(pub, data, s.Signature) {
		return Errorf(BadSignature, "ack from %s does not verify", s.Ack.Receiver)
	}
	if s.Ack.Nonce != nonce {
		return Errorf(BadSignature, "ack answers nonce %s, expected %s", s.Ack.Nonce, nonce)
	}
	return nil
}
