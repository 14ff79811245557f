package walk

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/crosswalk/src/common"
	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
	"github.com/mosaicnetworks/crosswalk/src/graph"
	"github.com/mosaicnetworks/crosswalk/src/hop"
	"github.com/mosaicnetworks/crosswalk/src/net"
	"github.com/mosaicnetworks/crosswalk/src/peers"
	"github.com/mosaicnetworks/crosswalk/src/replay"
)

type testCommunity struct {
	id    string
	key   *ecdsa.PrivateKey
	trans *net.InmemTransport
	conf  *Config
	coord *Coordinator
}

type testNetwork struct {
	t       *testing.T
	graph   graph.Graph
	peerSet *peers.PeerSet
	comms   map[string]*testCommunity
}

// newTestNetwork creates one in-memory transport and key-pair per community
// and a directory listing them all. Coordinators are created by start.
func newTestNetwork(t *testing.T, g graph.Graph, ids ...string) *testNetwork {
	peerList := []*peers.Peer{}
	comms := make(map[string]*testCommunity)

	for _, id := range ids {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		addr, trans := net.NewInmemTransport(id+"-addr", time.Second)

		conf := DefaultConfig()
		conf.HopTimeout = time.Second

		comms[id] = &testCommunity{
			id:    id,
			key:   key,
			trans: trans,
			conf:  conf,
		}
		peerList = append(peerList, peers.NewPeer(id, keys.PublicKeyHex(&key.PublicKey), addr))
	}

	for _, a := range comms {
		for _, b := range comms {
			if a != b {
				a.trans.Connect(b.trans.LocalAddr(), b.trans)
			}
		}
	}

	peerSet, err := peers.NewPeerSet(peerList)
	if err != nil {
		t.Fatal(err)
	}

	return &testNetwork{
		t:       t,
		graph:   g,
		peerSet: peerSet,
		comms:   comms,
	}
}

// start creates and runs the coordinator of a community. A nil trans means
// the community's own in-memory transport.
func (n *testNetwork) start(id string, trans net.Transport) *Coordinator {
	c := n.comms[id]
	if trans == nil {
		trans = c.trans
	}

	coord := NewCoordinator(
		c.conf,
		NewCommunity(id, c.key),
		n.peerSet,
		n.graph,
		replay.NewInmemGuard(replay.DefaultConfig()),
		trans,
		nil,
		FirstSelector{},
		common.NewTestEntry(n.t, common.TestLogLevel),
	)
	coord.RunAsync()
	n.t.Cleanup(coord.Shutdown)

	c.coord = coord
	return coord
}

func (n *testNetwork) startAll() {
	for id := range n.comms {
		n.start(id, nil)
	}
}

func (n *testNetwork) addr(id string) string {
	return n.comms[id].trans.LocalAddr()
}

// recordingTransport keeps a copy of every hop it sends.
type recordingTransport struct {
	net.Transport

	mu   sync.Mutex
	sent []net.HopRequest
}

func (r *recordingTransport) Hop(ctx context.Context, target string, args *net.HopRequest, resp *net.HopResponse) error {
	r.mu.Lock()
	r.sent = append(r.sent, *args)
	r.mu.Unlock()
	return r.Transport.Hop(ctx, target, args, resp)
}

func (r *recordingTransport) requests() []net.HopRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]net.HopRequest, len(r.sent))
	copy(res, r.sent)
	return res
}

// interceptTransport lets a test rewrite or drop outgoing hops.
type interceptTransport struct {
	net.Transport
	intercept func(attempt int, args *net.HopRequest) (*net.HopRequest, error)

	mu       sync.Mutex
	attempts int
}

func (i *interceptTransport) Hop(ctx context.Context, target string, args *net.HopRequest, resp *net.HopResponse) error {
	i.mu.Lock()
	attempt := i.attempts
	i.attempts++
	i.mu.Unlock()

	out, err := i.intercept(attempt, args)
	if err != nil {
		return err
	}
	return i.Transport.Hop(ctx, target, out, resp)
}

// ackTransport rewrites the acks coming back to the sender and signs them
// again with key, as a faulty receiver would.
type ackTransport struct {
	net.Transport
	key     *ecdsa.PrivateKey
	rewrite func(ack *hop.Ack)
}

func (a *ackTransport) Hop(ctx context.Context, target string, args *net.HopRequest, resp *net.HopResponse) error {
	if err := a.Transport.Hop(ctx, target, args, resp); err != nil {
		return err
	}

	ack := resp.Ack.Ack
	a.rewrite(&ack)

	signed, err := ack.Sign(a.key)
	if err != nil {
		return err
	}
	resp.Ack = signed
	return nil
}

// lineGraph builds a graph from directed edges and node owners.
func lineGraph(t *testing.T, owners map[string]string, edges ...[2]string) *graph.InmemGraph {
	g := graph.NewInmemGraph()
	for node, owner := range owners {
		if err := g.SetOwner(node, owner); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}
