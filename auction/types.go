package auction

import "time"

// Category partitions lots inside an auction run.
type Category string

const (
	CategoryProduct    Category = "product"
	CategoryTechnology Category = "technology"
)

// Valid returns true if the category is recognized.
func (c Category) Valid() bool {
	switch c {
	case CategoryProduct, CategoryTechnology:
		return true
	}
	return false
}

// LotStatus is the lifecycle position of a lot.
type LotStatus string

const (
	StatusPending LotStatus = "pending"
	StatusActive  LotStatus = "active"
	StatusSold    LotStatus = "sold"
	StatusUnsold  LotStatus = "unsold"
)

// Valid returns true if the status is recognized.
func (s LotStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSold, StatusUnsold:
		return true
	}
	return false
}

// Role is the privilege level carried by a verified identity.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleBidder Role = "bidder"
)

// Valid returns true if the role is recognized.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBidder:
		return true
	}
	return false
}

// Identity is the verified {id, role} pair supplied by the identity
// provider. The zero value is an unauthenticated guest.
type Identity struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// Authenticated reports whether the identity was issued by the provider.
func (i Identity) Authenticated() bool {
	return i.ID != 0 && i.Role.Valid()
}

// IsAdmin reports whether the identity may issue privileged commands.
func (i Identity) IsAdmin() bool {
	return i.Authenticated() && i.Role == RoleAdmin
}

// Lot is a single item up for auction.
type Lot struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Image        string     `json:"image,omitempty"`
	BasePrice    int64      `json:"basePrice"`
	CurrentBid   int64      `json:"currentBid"`
	WinnerID     int64      `json:"winnerId,omitempty"` // zero when nobody leads
	AuctionIndex int        `json:"auctionIndex"`
	IsActive     bool       `json:"isActive"`
	TimerEnd     *time.Time `json:"timerEnd"`
	Category     Category   `json:"category"`
	Status       LotStatus  `json:"status"`
	BidCount     int        `json:"bidCount"`
}

// Clone returns a deep copy of the lot.
func (l *Lot) Clone() *Lot {
	c := *l
	if l.TimerEnd != nil {
		t := *l.TimerEnd
		c.TimerEnd = &t
	}
	return &c
}

// Bid is a committed bid. Bids are never updated, only bulk-deleted when
// their lot is reversed to unsold.
type Bid struct {
	ID        int64     `json:"id"`
	LotID     int64     `json:"lotId"`
	BidderID  int64     `json:"bidderId"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// BidEntry is a bid joined with its bidder's display name.
type BidEntry struct {
	Bid
	BidderName string `json:"bidderName"`
}

// Bidder is a participant and their spendable wallet.
type Bidder struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Role          Role   `json:"role"`
	WalletBalance int64  `json:"walletBalance"`
}

// Audit actions written by the ledger.
const (
	ActionPlaceBid       = "PLACE_BID"
	ActionLotOpened      = "LOT_OPENED"
	ActionItemSold       = "ITEM_SOLD"
	ActionItemUnsold     = "ITEM_UNSOLD"
	ActionUnsoldRequeued = "UNSOLD_REQUEUED"
)

// AuditEntry is an append-only ledger log record.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	ActorID   int64          `json:"actorId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
