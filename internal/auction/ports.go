package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuctionRepository defines the interface for auction record persistence
type AuctionRepository interface {
	// GetByID retrieves an auction by its ID
	GetByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error)

	// GetByIDForUpdate retrieves an auction and locks its row for update.
	// This serializes every mutation (bid, buy-now, settlement) on one
	// auction. Must be called within a transaction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Auction, error)

	// ListExpiredActive returns the IDs of auctions that are still active
	// but whose effective end time is at or before now
	ListExpiredActive(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// ApplyBid updates price, bid count (+1), winning bid reference and,
	// when extendedEnd is non-nil, the extended end time. Runs within the
	// bid transaction.
	ApplyBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, price int64, winningBidID uuid.UUID, extendedEnd *time.Time) error

	// Close transitions an auction out of active into the given terminal
	// status, recording the final price and winner metadata. The update is
	// guarded by status = 'active'; Close reports false without error when
	// the auction was already closed by a concurrent transition.
	Close(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, status AuctionStatus, finalPrice int64, winnerEmail, winnerName *string, winningBidID *uuid.UUID) (bool, error)
}

// BidRepository defines the interface for the bid ledger
type BidRepository interface {
	// Insert appends a bid within a transaction
	Insert(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetWinning returns the currently winning bid for an auction, or nil
	// when no bid has been placed. Must run inside the transaction holding
	// the auction row lock.
	GetWinning(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Bid, error)

	// MarkOutbid flips a winning bid to outbid
	MarkOutbid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error

	// MarkWon flips the winning bid to won at settlement
	MarkWon(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error

	// ListRecent returns the most recent bids for an auction, newest first
	ListRecent(ctx context.Context, auctionID uuid.UUID, limit int) ([]*Bid, error)

	// ListBidderEmails returns the distinct bidder emails on an auction
	ListBidderEmails(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]string, error)
}

// OrderRepository defines the interface for the order sink
type OrderRepository interface {
	// Insert creates the order for a sold auction within the settlement
	// transaction
	Insert(ctx context.Context, tx pgx.Tx, order *Order) error
}

// RealtimePublisher broadcasts auction events to connected clients.
// Implementations are best-effort: failures are logged and swallowed.
type RealtimePublisher interface {
	Publish(ctx context.Context, auctionID uuid.UUID, eventKind string, payload any) error
}

// Notifier is the contract of the external notification sink consumed by the
// worker. Delivery failures never influence auction state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
