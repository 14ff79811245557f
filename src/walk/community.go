package walk

import (
	"crypto/ecdsa"

	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
	"github.com/mosaicnetworks/crosswalk/src/hop"
)

// Community is the local signing identity. The private key is not exposed.
type Community struct {
	ID  string
	key *ecdsa.PrivateKey
}

// NewCommunity creates a Community.
func NewCommunity(id string, key *ecdsa.PrivateKey) *Community {
	return &Community{
		ID:  id,
		key: key,
	}
}

// PublicKey returns the community's public key.
func (c *Community) PublicKey() *ecdsa.PublicKey {
	return &c.key.PublicKey
}

// PublicKeyHex returns the hex representation of the public key, as it
// appears in peers.json.
func (c *Community) PublicKeyHex() string {
	return keys.PublicKeyHex(&c.key.PublicKey)
}

// SignHop signs an outgoing hop message.
func (c *Community) SignHop(m *hop.Message) (hop.SignedMessage, error) {
	return m.Sign(c.key)
}

// SignAck signs an acknowledgement.
func (c *Community) SignAck(a *hop.Ack) (hop.SignedAck, error) {
	return a.Sign(c.key)
}
