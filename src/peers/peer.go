package peers

import (
	"crypto/ecdsa"
	"strings"

	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
)

// Peer is one entry of the directory.
type Peer struct {
	Community string
	NetAddr   string
	PubKeyHex string
}

// NewPeer creates a Peer.
func NewPeer(community, pubKeyHex, netAddr string) *Peer {
	return &Peer{
		Community: community,
		NetAddr:   netAddr,
		PubKeyHex: pubKeyHex,
	}
}

// PubKey decodes the peer's public key.
func (p *Peer) PubKey() (*ecdsa.PublicKey, error) {
	return keys.PublicKeyFromHex(p.PubKeyHex)
}

// cleanse standardises the public key string to the format keys.PublicKeyHex
// produces.
func (p *Peer) cleanse() {
	p.Community = strings.TrimSpace(p.Community)
	p.PubKeyHex = "0X" + strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(p.PubKeyHex)), "0X")
}
