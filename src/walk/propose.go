package walk

import (
	"context"
	"errors"
	"time"

	"github.com/mosaicnetworks/crosswalk/src/hop"
	"github.com/mosaicnetworks/crosswalk/src/net"
	"github.com/sirupsen/logrus"
)

// proposeHop hands w over to the community that owns next. It returns the
// receiver's acknowledgement of an accepted hop, or an error carrying the
// hop.Kind of the failure. A cancelled context is returned as is, unless it
// expired at the deadline of an upstream sender. Any transport failure counts
// as TransportTimeout: the attempt did not advance the walk, and it is retried
// with a fresh message while retries and ctx allow.
func (c *Coordinator) proposeHop(ctx context.Context, w *Walk, next, owner string) (*HopOutcome, *hop.Ack, error) {
	outcome := &HopOutcome{
		From:      w.CurrentNode,
		To:        next,
		Community: owner,
		Status:    hop.Rejected,
	}

	fail := func(err error) (*HopOutcome, *hop.Ack, error) {
		outcome.Reason = hop.KindOf(err)
		if outcome.Reason != "" {
			c.stats.inc(func(s *Stats) { s.HopsRejected[outcome.Reason]++ })
		}
		return outcome, nil, err
	}

	addr, err := c.peers.Addr(owner)
	if err != nil {
		return fail(hop.Errorf(hop.UnknownOrigin, "%v", err))
	}
	pub, err := c.peers.PublicKeyOf(owner)
	if err != nil {
		return fail(hop.Errorf(hop.UnknownOrigin, "%v", err))
	}

	var lastErr error
	for attempt := 0; attempt <= c.conf.HopRetries; attempt++ {
		if attempt > 0 {
			c.stats.inc(func(s *Stats) { s.HopsRetried++ })
		}
		outcome.Attempts = attempt + 1

		nextNode := next
		msg, err := hop.NewMessage(c.community.ID, w.CurrentNode, &nextNode, w.RemainingHops, w.Token, w.Attributes, c.conf.now())
		if err != nil {
			return fail(err)
		}
		outcome.Nonce = msg.Nonce

		signed, err := c.community.SignHop(&msg)
		if err != nil {
			return fail(err)
		}

		w.State = AwaitingVerification
		c.stats.inc(func(s *Stats) { s.HopsProposed++ })

		c.logger.WithFields(logrus.Fields{
			"walk":    w.ID,
			"from":    w.CurrentNode,
			"to":      next,
			"target":  owner,
			"nonce":   msg.Nonce,
			"attempt": outcome.Attempts,
		}).Debug("Propose hop")

		ack, err := c.sendHop(ctx, addr, &signed)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(context.Cause(ctx), errAckDeadline) {
				return outcome, nil, ctx.Err()
			}
			lastErr = hop.Errorf(hop.TransportTimeout, "%s: %v", owner, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err := ack.Verify(pub, msg.Nonce); err != nil {
			return fail(err)
		}
		if ack.Ack.Receiver != owner {
			return fail(hop.Errorf(hop.BadSignature, "ack signed by %s on behalf of %s", owner, ack.Ack.Receiver))
		}

		if err := ack.Ack.Err(); err != nil {
			return fail(err)
		}

		if ack.Ack.ReceivedNode != next || len(ack.Ack.Path) == 0 || ack.Ack.Path[0] != next ||
			ack.Ack.RemainingHops < 0 || ack.Ack.RemainingHops >= w.RemainingHops {
			return fail(hop.Errorf(hop.MalformedMessage, "inconsistent ack from %s", owner))
		}
		if final, err := ParseState(ack.Ack.FinalState); err != nil || !final.IsFinal() {
			return fail(hop.Errorf(hop.MalformedMessage, "ack from %s ends the walk in %q", owner, ack.Ack.FinalState))
		}

		outcome.Status = hop.Accepted
		c.stats.inc(func(s *Stats) { s.HopsAccepted++ })

		return outcome, &ack.Ack, nil
	}

	return fail(lastErr)
}

func (c *Coordinator) sendHop(ctx context.Context, addr string, signed *hop.SignedMessage) (*hop.SignedAck, error) {
	hctx, cancel := context.WithTimeout(ctx, c.conf.hopTimeout())
	defer cancel()

	deadline, _ := hctx.Deadline()
	args := net.HopRequest{Hop: *signed, Timeout: time.Until(deadline)}
	var out net.HopResponse

	if err := c.trans.Hop(hctx, addr, &args, &out); err != nil {
		return nil, err
	}

	return &out.Ack, nil
}
