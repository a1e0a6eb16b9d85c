package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/flashbots/auctioneer/metrics"
)

// PlaceBid validates a bid against the open lot and commits it. Every
// rejection is an *auction.Error addressed to the issuer only; a bid that
// lost the ledger's conditional update to a concurrent bid is reported as
// a race so the client can retry at the new price.
func (c *Coordinator) PlaceBid(ctx context.Context, id auction.Identity, cmd auction.PlaceBid) (*auction.BidReceipt, error) {
	start := c.clock.Now()
	defer metrics.ObserveBidAdmission(start)

	receipt, err := c.admit(ctx, id, cmd)
	if err != nil {
		e := auction.AsError(err)
		if e.Kind == auction.KindRace {
			metrics.IncBidRace()
		}
		metrics.IncBidRejected(string(e.Reason))
		c.log.Debug("Bid rejected", "bidderId", id.ID, "amount", cmd.Amount, "reason", e.Reason)
		return nil, err
	}

	metrics.IncBidAccepted()
	return receipt, nil
}

func (c *Coordinator) admit(ctx context.Context, id auction.Identity, cmd auction.PlaceBid) (*auction.BidReceipt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !id.Authenticated() {
		return nil, auction.Unauthorized("sign in to bid")
	}
	bidderID := cmd.BidderID
	if bidderID == 0 {
		bidderID = id.ID
	}
	if bidderID != id.ID {
		return nil, auction.Unauthorized("cannot bid on behalf of another bidder")
	}

	sess, ok := c.Session()
	if !ok {
		return nil, auction.Invalid(auction.ReasonNoActiveLot, "no active item")
	}

	now := c.clock.Now()
	if err := sess.admissionError(now); err != nil {
		return nil, err
	}

	lot, err := c.ledger.Lot(ctx, sess.LotID)
	if err != nil {
		return nil, c.ledgerError(err, "loading lot")
	}
	if lot.Status != auction.StatusActive {
		return nil, auction.Invalid(auction.ReasonLotClosed, "bidding on this item is closed")
	}

	required := auction.NextBid(lot.CurrentBid)
	if cmd.Amount != required {
		return nil, auction.WrongIncrement(required)
	}

	bidder, err := c.ledger.Bidder(ctx, bidderID)
	if err != nil {
		return nil, c.ledgerError(err, "loading bidder")
	}
	if bidder.WalletBalance < cmd.Amount {
		return nil, auction.Invalid(auction.ReasonInsufficientFunds, "insufficient funds")
	}

	res, err := c.ledger.CommitBid(ctx, auction.BidCommit{
		LotID:       lot.ID,
		BidderID:    bidderID,
		Amount:      cmd.Amount,
		ExpectedBid: lot.CurrentBid,
		At:          now,
	})
	if errors.Is(err, auction.ErrLotClosed) {
		if !c.clock.Now().Before(sess.Deadline) {
			return nil, auction.Invalid(auction.ReasonLateBid, "time is up for this item")
		}
		return nil, auction.Invalid(auction.ReasonLotClosed, "bidding on this item is closed")
	}
	if err != nil {
		return nil, c.ledgerError(err, "committing bid")
	}

	c.recordFirstBid(sess.epoch, now)

	c.pub.Publish(auction.Event{
		Type: auction.EventBidAccepted,
		Payload: auction.BidAccepted{
			LotID:     lot.ID,
			Amount:    res.Bid.Amount,
			BidderID:  bidderID,
			Bidder:    res.BidderName,
			Timestamp: res.Bid.CreatedAt,
		},
	})
	c.publishSnapshot(ctx)

	c.log.Info("Bid accepted", "lotId", lot.ID, "bidderId", bidderID, "amount", cmd.Amount)

	return &auction.BidReceipt{
		BidID:         res.Bid.ID,
		LotID:         lot.ID,
		Amount:        res.Bid.Amount,
		WalletBalance: res.WalletBalance,
		NextRequired:  auction.NextBid(res.Bid.Amount),
	}, nil
}

// recordFirstBid stamps the session's first bid time unless the session
// was replaced since the bid was validated.
func (c *Coordinator) recordFirstBid(epoch uint64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.epoch == epoch && c.session.FirstBidAt.IsZero() {
		c.session.FirstBidAt = at
	}
}
