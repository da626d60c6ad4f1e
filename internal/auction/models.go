package auction

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuctionStatus represents the lifecycle state of an auction
type AuctionStatus string

const (
	StatusPending   AuctionStatus = "pending"
	StatusActive    AuctionStatus = "active"
	StatusEnded     AuctionStatus = "ended"
	StatusSold      AuctionStatus = "sold"
	StatusNoSale    AuctionStatus = "no_sale"
	StatusCancelled AuctionStatus = "cancelled"
)

// String returns the string representation of the status
func (s AuctionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known auction status
func (s AuctionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusEnded, StatusSold, StatusNoSale, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can never transition again
func (s AuctionStatus) IsTerminal() bool {
	switch s {
	case StatusEnded, StatusSold, StatusNoSale, StatusCancelled:
		return true
	default:
		return false
	}
}

// BidStatus represents the lifecycle state of a bid
type BidStatus string

const (
	BidStatusWinning  BidStatus = "winning"
	BidStatusOutbid   BidStatus = "outbid"
	BidStatusWon      BidStatus = "won"
	BidStatusLost     BidStatus = "lost"
	BidStatusRejected BidStatus = "rejected"
)

// Auction represents one auction record. All monetary amounts are in cents.
type Auction struct {
	ID                 uuid.UUID      `db:"id"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	Images             []string       `db:"images"`
	StartingPrice      int64          `db:"starting_price"`
	CurrentPrice       int64          `db:"current_price"`
	ReservePrice       *int64         `db:"reserve_price"`
	BidIncrement       int64          `db:"bid_increment"`
	BidCount           int            `db:"bid_count"`
	StartAt            time.Time      `db:"start_at"`
	EndAt              time.Time      `db:"end_at"`
	ExtendedEndAt      *time.Time     `db:"extended_end_at"`
	Status             AuctionStatus  `db:"status"`
	IsActive           bool           `db:"is_active"`
	AutoExtend         bool           `db:"auto_extend"`
	ExtendThresholdMin int            `db:"extend_threshold_min"`
	ExtendByMin        int            `db:"extend_by_min"`
	WinnerEmail        *string        `db:"winner_email"`
	WinnerName         *string        `db:"winner_name"`
	WinningBidID       *uuid.UUID     `db:"winning_bid_id"`
	Metadata           map[string]any `db:"metadata"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// EffectiveEndAt returns the extended end time when set, the original end
// time otherwise
func (a *Auction) EffectiveEndAt() time.Time {
	if a.ExtendedEndAt != nil {
		return *a.ExtendedEndAt
	}
	return a.EndAt
}

// MinimumBid returns the lowest acceptable bid amount: the starting price for
// the first bid, the current price plus the fixed increment after that
func (a *Auction) MinimumBid() int64 {
	if a.BidCount == 0 {
		return a.StartingPrice
	}
	return a.CurrentPrice + a.BidIncrement
}

// ReserveSatisfied reports whether the given price meets the reserve.
// Auctions without a reserve price always satisfy it; comparison is inclusive.
func (a *Auction) ReserveSatisfied(price int64) bool {
	if a.ReservePrice == nil {
		return true
	}
	return price >= *a.ReservePrice
}

// ShouldExtend reports whether a bid landing at now falls inside the
// anti-sniping window
func (a *Auction) ShouldExtend(now time.Time) bool {
	if !a.AutoExtend {
		return false
	}
	threshold := time.Duration(a.ExtendThresholdMin) * time.Minute
	return a.EffectiveEndAt().Sub(now) < threshold
}

// ExtendedEnd computes the new effective end time after an extension
func (a *Auction) ExtendedEnd() time.Time {
	return a.EffectiveEndAt().Add(time.Duration(a.ExtendByMin) * time.Minute)
}

// Bid represents one entry in an auction's bid ledger
type Bid struct {
	ID          uuid.UUID  `db:"id"`
	AuctionID   uuid.UUID  `db:"auction_id"`
	BidderEmail string     `db:"bidder_email"`
	BidderName  string     `db:"bidder_name"`
	UserID      *uuid.UUID `db:"user_id"`
	Amount      int64      `db:"amount"`
	IsWinning   bool       `db:"is_winning"`
	Status      BidStatus  `db:"status"`
	IPAddress   string     `db:"ip_address"`
	UserAgent   string     `db:"user_agent"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Order is created exactly once per sold auction and handed to downstream
// payment/fulfillment, which is outside this engine
type Order struct {
	ID         uuid.UUID `db:"id"`
	AuctionID  uuid.UUID `db:"auction_id"`
	BidID      uuid.UUID `db:"bid_id"`
	BuyerEmail string    `db:"buyer_email"`
	BuyerName  string    `db:"buyer_name"`
	Amount     int64     `db:"amount"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

// OrderStatusCreated is the only order status this engine writes
const OrderStatusCreated = "created"

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	AuctionID   uuid.UUID
	Amount      int64
	BidderEmail string
	BidderName  string
	UserID      *uuid.UUID
	IPAddress   string
	UserAgent   string
}

// PlaceBidResult is returned to the caller after a successful bid
type PlaceBidResult struct {
	Auction        *Auction
	Bid            *Bid
	ReserveMet     bool
	ReserveJustMet bool
	TimeExtended   bool
	NewEndAt       *time.Time
}

// BuyNowCommand represents the command to buy an auction out immediately
type BuyNowCommand struct {
	AuctionID  uuid.UUID
	Price      int64
	BuyerEmail string
	BuyerName  string
}

// BuyNowResult is returned after a successful instant purchase
type BuyNowResult struct {
	Auction    *Auction
	FinalPrice int64
}

// SweepResult tallies one settlement sweep. Errors holds one message per
// auction that failed to settle; a failed auction never aborts the sweep.
type SweepResult struct {
	Processed int
	Sold      int
	NoSale    int
	Errors    []string
}

// BidView is a bid as exposed on the public history endpoint, with the
// bidder's email masked
type BidView struct {
	ID          uuid.UUID `json:"id"`
	BidderEmail string    `json:"bidder_email"`
	BidderName  string    `json:"bidder_name,omitempty"`
	Amount      int64     `json:"amount"`
	IsWinning   bool      `json:"is_winning"`
	Status      BidStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// MaskEmail hides a bidder's identity on public reads: first two characters
// of the local part plus the domain ("jo***@example.com")
func MaskEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found {
		if len(local) <= 2 {
			return local
		}
		return local[:2] + "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + domain
}
