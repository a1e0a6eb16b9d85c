package auction

import "time"

// Snapshot is the complete broadcastable state of the open lot.
type Snapshot struct {
	LotID                int64      `json:"currentItemId"`
	Name                 string     `json:"itemName"`
	Image                string     `json:"image,omitempty"`
	BasePrice            int64      `json:"basePrice"`
	CurrentBid           int64      `json:"currentBid"`
	LeadingBidder        *string    `json:"leadingBidder"`
	TimerEnd             *time.Time `json:"timerEnd"`
	SecondsRemaining     int64      `json:"timerSeconds"`
	HasBids              bool       `json:"hasBids"`
	SecondsSinceFirstBid *int64     `json:"timeSinceFirstBid"`
	Status               LotStatus  `json:"status"`
	Category             Category   `json:"category"`
	Bids                 []BidView  `json:"bids"`
}

// BidView is one line of the bid history shown to subscribers.
type BidView struct {
	Amount    int64     `json:"amount"`
	Bidder    string    `json:"bidder"`
	Timestamp time.Time `json:"timestamp"`
}

// BuildSnapshot assembles the snapshot for lot. bids must be ordered highest
// first, which is how Ledger.LotWithBids returns them. firstBidAt is the
// zero time when no bid was admitted during the current session.
func BuildSnapshot(lot *Lot, bids []BidEntry, now, firstBidAt time.Time) *Snapshot {
	s := &Snapshot{
		LotID:      lot.ID,
		Name:       lot.Name,
		Image:      lot.Image,
		BasePrice:  lot.BasePrice,
		CurrentBid: lot.CurrentBid,
		HasBids:    len(bids) > 0,
		Status:     lot.Status,
		Category:   lot.Category,
		Bids:       make([]BidView, 0, len(bids)),
	}

	if lot.TimerEnd != nil {
		end := *lot.TimerEnd
		s.TimerEnd = &end
		s.SecondsRemaining = SecondsUntil(end, now)
	}

	if len(bids) > 0 {
		leader := bids[0].BidderName
		s.LeadingBidder = &leader
	}

	if !firstBidAt.IsZero() {
		elapsed := int64(now.Sub(firstBidAt) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		s.SecondsSinceFirstBid = &elapsed
	}

	for _, b := range bids {
		s.Bids = append(s.Bids, BidView{
			Amount:    b.Amount,
			Bidder:    b.BidderName,
			Timestamp: b.CreatedAt,
		})
	}

	return s
}

// SecondsUntil returns whole seconds from now until deadline, floored and
// clamped at zero.
func SecondsUntil(deadline, now time.Time) int64 {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}
