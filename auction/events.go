package auction

import "time"

// EventType names an outbound message on the real-time channel.
type EventType string

// Broadcast to every subscriber.
const (
	EventState           EventType = "auction:state"
	EventBidAccepted     EventType = "bid:accepted"
	EventTimerFinished   EventType = "auction:timer:finished"
	EventUnsoldAvailable EventType = "auction:unsold:available"
	EventLotSold         EventType = "auction:lot:sold"
	EventLotUnsold       EventType = "auction:lot:unsold"
	EventComplete        EventType = "auction:complete"
)

// Sent to the issuing connection only.
const (
	EventBidReceipt EventType = "bid:receipt"
	EventAdminAck   EventType = "admin:ack"
	EventIdle       EventType = "auction:idle"
	EventBidError   EventType = "bid:error"
	EventError      EventType = "error"
)

// Event is an outbound message.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Critical reports whether losing the event would leave a subscriber with a
// wrong picture that the next snapshot does not repair.
func (e Event) Critical() bool {
	return e.Type != EventState
}

// Publisher delivers broadcast events to every connected subscriber.
// Delivery is best effort; implementations must not block the caller on a
// slow subscriber.
type Publisher interface {
	Publish(ev Event)
}

// BidAccepted is the payload of EventBidAccepted.
type BidAccepted struct {
	LotID     int64     `json:"lotId"`
	Amount    int64     `json:"amount"`
	BidderID  int64     `json:"bidderId"`
	Bidder    string    `json:"bidder"`
	Timestamp time.Time `json:"timestamp"`
}

// TimerFinished is the payload of EventTimerFinished.
type TimerFinished struct {
	LotID         int64   `json:"itemId"`
	Name          string  `json:"itemName"`
	HasBids       bool    `json:"hasBids"`
	WinningBidder *string `json:"winningBidder"`
	WinningBid    *int64  `json:"winningBid"`
}

// UnsoldAvailable is the payload of EventUnsoldAvailable.
type UnsoldAvailable struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// LotSold is the payload of EventLotSold.
type LotSold struct {
	LotID      int64  `json:"itemId"`
	Name       string `json:"itemName"`
	WinnerID   int64  `json:"winnerId"`
	WinningBid int64  `json:"winningBid"`
}

// LotUnsold is the payload of EventLotUnsold.
type LotUnsold struct {
	LotID    int64  `json:"itemId"`
	Name     string `json:"itemName"`
	Refunded int    `json:"refundedBids"`
}

// BidReceipt is returned to the bidder whose bid was admitted.
type BidReceipt struct {
	BidID         int64 `json:"bidId"`
	LotID         int64 `json:"lotId"`
	Amount        int64 `json:"amount"`
	WalletBalance int64 `json:"wallet"`
	NextRequired  int64 `json:"nextRequired"`
}

// AdminOutcome results of admin commands.
const (
	OutcomeLotOpened       = "lot-opened"
	OutcomeComplete        = "auction-complete"
	OutcomeUnsoldAvailable = "unsold-available"
	OutcomeSold            = "sold"
	OutcomeUnsold          = "unsold"
	OutcomeAlreadyUnsold   = "already-unsold"
)

// AdminOutcome acknowledges an admin command to its issuer.
type AdminOutcome struct {
	Command CommandType `json:"command"`
	Result  string      `json:"result"`
	LotID   int64       `json:"lotId,omitempty"`
	Count   int         `json:"count,omitempty"`
}

// ErrorPayload is the body of EventBidError and EventError.
type ErrorPayload struct {
	Kind           ErrorKind `json:"kind"`
	Reason         Reason    `json:"reason"`
	Message        string    `json:"message"`
	RequiredAmount int64     `json:"requiredAmount,omitempty"`
}

// NewErrorEvent converts err into the issuer-only error event. Bid
// rejections use EventBidError so clients can route them to the bid form.
func NewErrorEvent(cmd CommandType, err error) Event {
	e := AsError(err)
	typ := EventError
	if cmd == CommandPlaceBid {
		typ = EventBidError
	}
	return Event{
		Type: typ,
		Payload: ErrorPayload{
			Kind:           e.Kind,
			Reason:         e.Reason,
			Message:        e.Message,
			RequiredAmount: e.RequiredAmount,
		},
	}
}
