package coordinator

import (
	"context"

	"github.com/flashbots/auctioneer/auction"
)

// Handle executes cmd on behalf of id and returns the reply addressed to
// the issuer only. A nil reply means the issuer learns the outcome from the
// broadcast. Errors are *auction.Error values.
//
// Admin transitions run to completion even if the issuer disconnects.
func (c *Coordinator) Handle(ctx context.Context, id auction.Identity, cmd auction.Command) (*auction.Event, error) {
	if cmd.CommandType().Privileged() {
		ctx = context.WithoutCancel(ctx)
	}
	reply, err := c.handle(ctx, id, cmd)
	if err != nil && cmd.CommandType().Privileged() {
		e := auction.AsError(err)
		c.log.Warn("Admin command rejected", "command", cmd.CommandType(), "issuer", id.ID,
			"kind", e.Kind, "reason", e.Reason, "err", err)
	}
	return reply, err
}

func (c *Coordinator) handle(ctx context.Context, id auction.Identity, cmd auction.Command) (*auction.Event, error) {
	switch cmd := cmd.(type) {
	case auction.Join:
		if _, ok := c.Session(); !ok {
			return &auction.Event{Type: auction.EventIdle}, nil
		}
		c.publishSnapshot(ctx)
		return nil, nil

	case auction.PlaceBid:
		receipt, err := c.PlaceBid(ctx, id, cmd)
		if err != nil {
			return nil, err
		}
		return &auction.Event{Type: auction.EventBidReceipt, Payload: receipt}, nil

	case auction.Start:
		return ack(c.Start(ctx, id))

	case auction.Next:
		return ack(c.Next(ctx, id, cmd))

	case auction.MarkSold:
		return ack(c.MarkSold(ctx, id, cmd))

	case auction.MarkUnsold:
		return ack(c.MarkUnsold(ctx, id, cmd))

	case auction.StartUnsold:
		return ack(c.StartUnsold(ctx, id))
	}

	return nil, auction.Invalid(auction.ReasonMalformed, "unsupported command %T", cmd)
}

func ack(outcome *auction.AdminOutcome, err error) (*auction.Event, error) {
	if err != nil {
		return nil, err
	}
	return &auction.Event{Type: auction.EventAdminAck, Payload: outcome}, nil
}
