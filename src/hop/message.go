package hop

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"unicode/utf8"

	"github.com/mosaicnetworks/crosswalk/src/canonical"
	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
)

// NonceBytes is the number of random bytes in a nonce. Nonces travel as twice
// as many lowercase hex characters.
const NonceBytes = 8

var nonceFormat = regexp.MustCompile(`^[0-9a-f]{16}$`)

// Message is one proposed cross-community transition. A nil NextNode is a
// termination notice.
type Message struct {
	Origin        string            `json:"origin"`
	CurrentNode   string            `json:"current_node"`
	NextNode      *string           `json:"next_node"`
	RemainingHops int               `json:"remaining_hops"`
	Token         string            `json:"token"`
	Attributes    map[string]string `json:"attributes"`
	Timestamp     int64             `json:"timestamp"`
	Nonce         string            `json:"nonce"`
}

// NewMessage builds a Message with a fresh nonce, stamped at now (epoch
// seconds).
func NewMessage(origin, currentNode string, nextNode *string, remainingHops int, token string, attributes map[string]string, now int64) (Message, error) {
	nonce, err := NewNonce()
	if err != nil {
		return Message{}, err
	}

	attrs := make(map[string]string, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}

	m := Message{
		Origin:        origin,
		CurrentNode:   currentNode,
		NextNode:      nextNode,
		RemainingHops: remainingHops,
		Token:         token,
		Attributes:    attrs,
		Timestamp:     now,
		Nonce:         nonce,
	}

	return m, m.Validate()
}

// NewNonce returns NonceBytes random bytes as hex.
func NewNonce() (string, error) {
	b := make([]byte, NonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// StrPtr is a helper for building NextNode values.
func StrPtr(s string) *string {
	return &s
}

// IsTermination reports whether m announces the end of a walk rather than a
// move.
func (m *Message) IsTermination() bool {
	return m.NextNode == nil
}

// Validate checks the schema. It never looks at signatures or keys.
func (m *Message) Validate() error {
	switch {
	case m.Origin == "":
		return Errorf(MalformedMessage, "origin is empty")
	case m.CurrentNode == "":
		return Errorf(MalformedMessage, "current_node is empty")
	case m.NextNode != nil && *m.NextNode == "":
		return Errorf(MalformedMessage, "next_node is an empty string")
	case m.RemainingHops < 0:
		return Errorf(MalformedMessage, "remaining_hops is negative: %d", m.RemainingHops)
	case m.Timestamp <= 0:
		return Errorf(MalformedMessage, "timestamp is not positive: %d", m.Timestamp)
	case !nonceFormat.MatchString(m.Nonce):
		return Errorf(MalformedMessage, "nonce %q is not %d hex bytes", m.Nonce, NonceBytes)
	}
	return m.validateText()
}

// validateText refuses invalid UTF-8 in any string field. Such strings have
// no canonical encoding.
func (m *Message) validateText() error {
	fields := map[string]string{
		"origin":       m.Origin,
		"current_node": m.CurrentNode,
		"token":        m.Token,
	}
	if m.NextNode != nil {
		fields["next_node"] = *m.NextNode
	}
	for name, v := range fields {
		if !utf8.ValidString(v) {
			return Errorf(MalformedMessage, "%s is not valid UTF-8", name)
		}
	}
	for k, v := range m.Attributes {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return Errorf(MalformedMessage, "attribute %q is not valid UTF-8", k)
		}
	}
	return nil
}

// CanonicalMap returns the fields covered by the signature.
func (m *Message) CanonicalMap() map[string]interface{} {
	var next interface{}
	if m.NextNode != nil {
		next = *m.NextNode
	}
	attrs := m.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return map[string]interface{}{
		"origin":         m.Origin,
		"current_node":   m.CurrentNode,
		"next_node":      next,
		"remaining_hops": m.RemainingHops,
		"token":          m.Token,
		"attributes":     attrs,
		"timestamp":      m.Timestamp,
		"nonce":          m.Nonce,
	}
}

// SigningBytes returns the canonical encoding of m.
func (m *Message) SigningBytes() ([]byte, error) {
	return canonical.Encode(m.CanonicalMap())
}

// Sign signs m with the origin's private key.
func (m *Message) Sign(priv *ecdsa.PrivateKey) (SignedMessage, error) {
	data, err := m.SigningBytes()
	if err != nil {
		return SignedMessage{}, err
	}
	sig, err := keys.Sign(priv, data)
	if err != nil {
		return SignedMessage{}, err
	}
	return SignedMessage{
		Message:   *m,
		Signature: sig,
	}, nil
}

// SignedMessage is a Message and the detached signature of its canonical
// encoding.
type SignedMessage struct {
	Message   Message `json:"message"`
	Signature []byte  `json:"signature"`
}

// Verify checks the signature against pub. It returns a BadSignature Error
// rather than a bare false so callers keep the reason.
func (s *SignedMessage) Verify(pub *ecdsa.PublicKey) error {
	data, err := s.Message.SigningBytes()
	if err != nil {
		return Errorf(MalformedMessage, "encoding: %v", err)
	}
	if !keys.Verify(pub, data, s.Signature) {
		return Errorf(BadSignature, "signature from %s does not verify", s.Message.Origin)
	}
	return nil
}
