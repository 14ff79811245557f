package peers

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownCommunity is returned for identities absent from the directory.
var ErrUnknownCommunity = errors.New("unknown community")

// PeerSet maps community identities to their public keys and addresses. It is
// immutable once created and safe for concurrent reads.
type PeerSet struct {
	Peers       []*Peer          `json:"peers"`
	ByCommunity map[string]*Peer `json:"-"`

	keys map[string]*ecdsa.PublicKey
}

// NewPeerSet creates a PeerSet from a list of Peers. Every public key is
// decoded up front; an undecodable key, an empty identity, or two entries for
// the same identity is an error.
func NewPeerSet(peers []*Peer) (*PeerSet, error) {
	peerSet := &PeerSet{
		Peers:       peers,
		ByCommunity: make(map[string]*Peer, len(peers)),
		keys:        make(map[string]*ecdsa.PublicKey, len(peers)),
	}

	for _, peer := range peers {
		if peer.Community == "" {
			return nil, fmt.Errorf("peer %s has no community", peer.NetAddr)
		}

		if _, ok := peerSet.ByCommunity[peer.Community]; ok {
			return nil, fmt.Errorf("duplicate entry for community %s", peer.Community)
		}

		pub, err := peer.PubKey()
		if err != nil {
			return nil, fmt.Errorf("community %s: %w", peer.Community, err)
		}

		peerSet.ByCommunity[peer.Community] = peer
		peerSet.keys[peer.Community] = pub
	}

	return peerSet, nil
}

// NewPeerSetFromPeerSliceBytes creates a PeerSet from a JSON list of Peers.
func NewPeerSetFromPeerSliceBytes(peerSliceBytes []byte) (*PeerSet, error) {
	peers := []*Peer{}

	dec := json.NewDecoder(bytes.NewReader(peerSliceBytes))
	if err := dec.Decode(&peers); err != nil {
		return nil, err
	}

	for _, p := range peers {
		p.cleanse()
	}

	return NewPeerSet(peers)
}

// PublicKeyOf returns the public key of a community, or ErrUnknownCommunity.
func (peerSet *PeerSet) PublicKeyOf(identity string) (*ecdsa.PublicKey, error) {
	pub, ok := peerSet.keys[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommunity, identity)
	}
	return pub, nil
}

// Addr returns the network address of a community, or ErrUnknownCommunity.
func (peerSet *PeerSet) Addr(identity string) (string, error) {
	peer, ok := peerSet.ByCommunity[identity]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommunity, identity)
	}
	return peer.NetAddr, nil
}

// Contains reports whether identity is listed.
func (peerSet *PeerSet) Contains(identity string) bool {
	_, ok := peerSet.ByCommunity[identity]
	return ok
}

// Identities returns the sorted list of community identities.
func (peerSet *PeerSet) Identities() []string {
	res := make([]string, 0, len(peerSet.ByCommunity))
	for id := range peerSet.ByCommunity {
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}

// Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByCommunity)
}

// Marshal marshals the list of peers
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
