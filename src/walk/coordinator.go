package walk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mosaicnetworks/crosswalk/src/graph"
	"github.com/mosaicnetworks/crosswalk/src/hop"
	"github.com/mosaicnetworks/crosswalk/src/net"
	"github.com/mosaicnetworks/crosswalk/src/peers"
	"github.com/mosaicnetworks/crosswalk/src/replay"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotLocal is returned when a walk is started on a node another
	// community owns.
	ErrNotLocal = errors.New("start node is not owned by this community")
	// ErrBadHopBudget is returned for a max hops outside (0, MaxWalkHops].
	ErrBadHopBudget = errors.New("max hops out of range")
	// ErrShutdown is returned by a coordinator that has been shut down.
	ErrShutdown = errors.New("coordinator is shut down")
)

// Coordinator drives the walks of one community. It starts walks on local
// nodes, advances them over local edges, proposes signed hops when the next
// node belongs to another community, and verifies the hops other communities
// propose to it.
type Coordinator struct {
	conf      *Config
	community *Community
	peers     *peers.PeerSet
	graph     graph.Graph
	guard     replay.Guard
	trans     net.Transport
	policy    TokenPolicy
	selector  NeighborSelector
	logger    *logrus.Entry

	stats *stats

	// in-flight inbound RPCs; rpcLock orders wg.Add against Shutdown
	wg      sync.WaitGroup
	rpcLock sync.Mutex

	runCtx     context.Context
	runCancel  context.CancelFunc
	shutdown   int32
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewCoordinator creates a Coordinator. The guard is the receiving community's
// own nonce store; the peer set must list every community the graph refers
// to.
func NewCoordinator(
	conf *Config,
	community *Community,
	peerSet *peers.PeerSet,
	g graph.Graph,
	guard replay.Guard,
	trans net.Transport,
	policy TokenPolicy,
	selector NeighborSelector,
	logger *logrus.Entry,
) *Coordinator {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	if policy == nil {
		policy = NewStaticTokenPolicy()
	}

	if selector == nil {
		selector = NewRandomSelector(0)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		conf:       conf,
		community:  community,
		peers:      peerSet,
		graph:      g,
		guard:      guard,
		trans:      trans,
		policy:     policy,
		selector:   selector,
		logger:     logger.WithField("community", community.ID),
		stats:      newStats(),
		runCtx:     ctx,
		runCancel:  cancel,
		shutdownCh: make(chan struct{}),
	}
}

// ID returns the identity of the local community.
func (c *Coordinator) ID() string {
	return c.community.ID
}

// Peers returns the community directory.
func (c *Coordinator) Peers() *peers.PeerSet {
	return c.peers
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() Stats {
	return c.stats.snapshot()
}

// Run consumes inbound RPCs until Shutdown. Each RPC is processed in its own
// goroutine.
func (c *Coordinator) Run() {
	netCh := c.trans.Consumer()
	for {
		select {
		case rpc, ok := <-netCh:
			if !ok {
				return
			}
			if !c.dispatch(rpc) {
				return
			}
		case <-c.shutdownCh:
			return
		}
	}
}

// dispatch processes rpc in its own goroutine. Once Shutdown has started, rpc
// is refused instead and dispatch returns false.
func (c *Coordinator) dispatch(rpc net.RPC) bool {
	c.rpcLock.Lock()
	defer c.rpcLock.Unlock()

	if c.isShutdown() {
		rpc.Respond(nil, net.ErrTransportShutdown)
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.processRPC(rpc)
	}()
	return true
}

// RunAsync runs the coordinator in a background goroutine.
func (c *Coordinator) RunAsync() {
	go c.Run()
}

// Shutdown stops consuming RPCs, cancels the walks this community is
// executing, waits for in-flight RPCs, and closes the transport and the
// replay guard.
func (c *Coordinator) Shutdown() {
	c.closeOnce.Do(func() {
		c.logger.Debug("Shutdown")

		c.rpcLock.Lock()
		atomic.StoreInt32(&c.shutdown, 1)
		c.rpcLock.Unlock()

		close(c.shutdownCh)
		c.runCancel()

		c.trans.Close()
		c.wg.Wait()

		if err := c.guard.Close(); err != nil {
			c.logger.WithError(err).Error("Closing replay guard")
		}
	})
}

func (c *Coordinator) isShutdown() bool {
	return atomic.LoadInt32(&c.shutdown) == 1
}

// Start runs a walk from a local node until it terminates, here or in another
// community. A non-nil Result is returned whenever the walk started, even if
// ctx was cancelled along the way.
func (c *Coordinator) Start(ctx context.Context, req StartRequest) (*Result, error) {
	if c.isShutdown() {
		return nil, ErrShutdown
	}

	if req.MaxHops <= 0 || (c.conf.MaxWalkHops > 0 && req.MaxHops > c.conf.MaxWalkHops) {
		return nil, fmt.Errorf("%w: %d", ErrBadHopBudget, req.MaxHops)
	}

	owner, err := c.graph.Owner(req.StartNode)
	if err != nil {
		return nil, err
	}
	if owner != c.community.ID {
		return nil, fmt.Errorf("%w: %s belongs to %s", ErrNotLocal, req.StartNode, owner)
	}

	id, err := hop.NewNonce()
	if err != nil {
		return nil, err
	}

	attrs := copyAttributes(req.Attributes)
	attrs[WalkIDAttribute] = id

	w := &Walk{
		ID:               id,
		CurrentNode:      req.StartNode,
		CurrentCommunity: c.community.ID,
		RemainingHops:    req.MaxHops,
		Token:            req.Token,
		Attributes:       attrs,
		Path:             []string{req.StartNode},
		State:            Local,
	}

	c.stats.inc(func(s *Stats) { s.WalksStarted++ })

	c.logger.WithFields(logrus.Fields{
		"walk":       w.ID,
		"start_node": w.CurrentNode,
		"max_hops":   w.RemainingHops,
	}).Info("Start walk")

	// Shutdown cancels walks in progress
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.runCtx, cancel)
	defer stop()

	res := c.run(ctx, w)

	c.logger.WithFields(logrus.Fields{
		"walk":        res.WalkID,
		"path":        res.Path,
		"state":       res.State.String(),
		"termination": res.Termination,
	}).Info("Walk ended")

	return res, ctx.Err()
}

// run advances w until it stops. Local steps are applied directly; the first
// foreign step hands the walk over to the owning community, whose
// acknowledgement describes the rest of it.
func (c *Coordinator) run(ctx context.Context, w *Walk) *Result {
	for {
		if ctx.Err() != nil {
			w.State = Terminated
			return w.result("", nil)
		}

		if w.RemainingHops <= 0 {
			w.State = Terminated
			return w.result(hop.HopBudgetExhausted, nil)
		}

		next, owner, ok := c.nextCandidate(w)
		if !ok {
			w.State = Terminated
			return w.result(hop.NoCandidateNeighbor, nil)
		}

		if owner == c.community.ID {
			w.CurrentNode = next
			w.RemainingHops--
			w.Path = append(w.Path, next)
			w.State = Local
			c.stats.inc(func(s *Stats) { s.LocalSteps++ })
			continue
		}

		w.State = ProposingHop
		outcome, ack, err := c.proposeHop(ctx, w, next, owner)
		if err != nil {
			kind := hop.KindOf(err)
			if kind == "" {
				// cancelled
				w.State = Terminated
				return w.result("", outcome)
			}

			c.logger.WithFields(logrus.Fields{
				"walk":   w.ID,
				"to":     owner,
				"reason": kind,
			}).WithError(err).Warn("Hop rejected")

			w.State = StateFor(kind)
			return w.result(kind, outcome)
		}

		// The receiver ran the walk from next to its end.
		w.Path = append(w.Path, ack.Path...)
		w.RemainingHops = ack.RemainingHops
		w.CurrentNode = w.Path[len(w.Path)-1]
		w.CurrentCommunity = owner
		// proposeHop only returns acks with a final state
		w.State, _ = ParseState(ack.FinalState)
		return w.result(ack.Termination, outcome)
	}
}

// nextCandidate picks a neighbor of the current node and resolves its owner.
func (c *Coordinator) nextCandidate(w *Walk) (string, string, bool) {
	neighbors, err := c.graph.Neighbors(w.CurrentNode)
	if err != nil {
		c.logger.WithError(err).WithField("node", w.CurrentNode).Warn("Neighbors")
		return "", "", false
	}
	if len(neighbors) == 0 {
		return "", "", false
	}

	next := c.selector.Select(neighbors)

	owner, err := c.graph.Owner(next)
	if err != nil {
		c.logger.WithError(err).WithField("node", next).Warn("Owner")
		return "", "", false
	}

	return next, owner, true
}
