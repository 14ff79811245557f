package walk

import (
	"context"
	"errors"

	"github.com/mosaicnetworks/crosswalk/src/hop"
	"github.com/mosaicnetworks/crosswalk/src/net"
	"github.com/mosaicnetworks/crosswalk/src/replay"
	"github.com/sirupsen/logrus"
)

func (c *Coordinator) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.HopRequest:
		c.processHopRequest(rpc, cmd)
	default:
		c.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, errUnexpectedCommand)
	}
}

var errUnexpectedCommand = hop.Errorf(hop.MalformedMessage, "unexpected command")

// A receiver keeps 1/ackMargin of the sender's timeout for signing the ack and
// sending it back.
const ackMargin = 5

// errAckDeadline ends the part of a walk run on behalf of a sender that is
// about to stop waiting for the ack.
var errAckDeadline = errors.New("sender stops waiting for the ack")

func (c *Coordinator) processHopRequest(rpc net.RPC, cmd *net.HopRequest) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = c.conf.hopTimeout()
	}
	ctx, cancel := context.WithTimeoutCause(c.runCtx, timeout-timeout/ackMargin, errAckDeadline)
	defer cancel()

	ack := c.HandleHop(ctx, &cmd.Hop)

	signed, err := c.community.SignAck(&ack)
	if err != nil {
		c.logger.WithError(err).Error("Signing ack")
		rpc.Respond(nil, err)
		return
	}

	rpc.Respond(&net.HopResponse{Ack: signed}, nil)
}

// HandleHop evaluates a hop proposed by another community. The checks run in
// a fixed order and the first failure decides the rejection: schema, origin
// lookup, signature, freshness, nonce, token. An unknown origin is refused
// without looking at the signature. An accepted move is continued locally
// from its next node until ctx expires, and the returned Ack describes how the
// walk ended.
func (c *Coordinator) HandleHop(ctx context.Context, sm *hop.SignedMessage) hop.Ack {
	m := &sm.Message

	c.stats.inc(func(s *Stats) { s.HopsReceived++ })

	logger := c.logger.WithFields(logrus.Fields{
		"origin": m.Origin,
		"from":   m.CurrentNode,
		"nonce":  m.Nonce,
	})

	reject := func(err error) hop.Ack {
		ack := hop.Reject(c.community.ID, m.Nonce, err)
		c.stats.inc(func(s *Stats) { s.HopsRefused[ack.Reason]++ })
		logger.WithField("reason", ack.Reason).WithError(err).Debug("Refuse hop")
		return ack
	}

	if err := m.Validate(); err != nil {
		return reject(err)
	}

	pub, err := c.peers.PublicKeyOf(m.Origin)
	if err != nil {
		return reject(hop.Errorf(hop.UnknownOrigin, "%s", m.Origin))
	}

	c.stats.inc(func(s *Stats) { s.SignaturesChecked++ })
	if err := sm.Verify(pub); err != nil {
		return reject(err)
	}

	verdict, err := c.guard.Admit(m.Nonce, m.Timestamp, c.conf.now())
	if err != nil {
		// Without the store there is no telling whether this is a replay.
		logger.WithError(err).Error("Replay guard")
		return reject(hop.Errorf(hop.ReplayDetected, "replay store unavailable"))
	}
	if verdict != replay.Accepted {
		return reject(hop.Errorf(verdict.Kind(), "timestamp %d", m.Timestamp))
	}

	if !c.policy.Allow(m.Token) {
		return reject(hop.Errorf(hop.InvalidToken, "token refused"))
	}

	if m.IsTermination() {
		c.stats.inc(func(s *Stats) { s.NoticesReceived++ })
		logger.Info("Walk terminated by origin")
		return hop.Ack{
			Status:        hop.Accepted,
			Receiver:      c.community.ID,
			Nonce:         m.Nonce,
			RemainingHops: m.RemainingHops,
			FinalState:    Terminated.String(),
		}
	}

	if m.RemainingHops == 0 {
		return reject(hop.Errorf(hop.HopBudgetExhausted, "no hop left to reach %s", *m.NextNode))
	}

	owner, err := c.graph.Owner(*m.NextNode)
	if err != nil || owner != c.community.ID {
		return reject(hop.Errorf(hop.MalformedMessage, "%s is not a node of %s", *m.NextNode, c.community.ID))
	}

	c.stats.inc(func(s *Stats) { s.HopsAdmitted++ })

	w := &Walk{
		ID:               m.Attributes[WalkIDAttribute],
		CurrentNode:      *m.NextNode,
		CurrentCommunity: c.community.ID,
		RemainingHops:    m.RemainingHops - 1,
		Token:            m.Token,
		Attributes:       copyAttributes(m.Attributes),
		Path:             []string{*m.NextNode},
		State:            Accepted,
	}

	logger.WithFields(logrus.Fields{
		"walk":      w.ID,
		"node":      w.CurrentNode,
		"remaining": w.RemainingHops,
	}).Debug("Accept hop")

	res := c.run(ctx, w)

	return hop.Ack{
		Status:        hop.Accepted,
		ReceivedNode:  *m.NextNode,
		Receiver:      c.community.ID,
		Nonce:         m.Nonce,
		Path:          res.Path,
		RemainingHops: res.RemainingHops,
		FinalState:    res.State.String(),
		Termination:   res.Termination,
	}
}
