package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lotward/auctioneer/pkg/database"
	"github.com/lotward/auctioneer/pkg/events"
)

// validateBidCommand checks the caller-supplied fields of a bid
func validateBidCommand(cmd PlaceBidCommand) error {
	if cmd.Amount <= 0 {
		return ErrInvalidBidAmount
	}
	if cmd.BidderEmail == "" {
		return ErrMissingBidder
	}
	return nil
}

// validateBiddable checks that an auction can currently accept bids.
// now is the time captured at the start of the transaction.
func validateBiddable(a *Auction, now time.Time) error {
	if a.Status != StatusActive || !a.IsActive {
		return ErrAuctionNotActive
	}
	if !a.EffectiveEndAt().After(now) {
		return ErrAuctionEnded
	}
	return nil
}

// Service implements the bidding and settlement engine
type Service struct {
	txManager     database.TransactionManager
	auctionRepo   AuctionRepository
	bidRepo       BidRepository
	orderRepo     OrderRepository
	outboxRepo    events.OutboxRepository
	realtime      RealtimePublisher
	buyNowPremium int64
	logger        *slog.Logger
}

// NewService creates the auction service. buyNowPremium is the flat amount in
// cents added on top of the current price when computing the buy-now price.
func NewService(
	txManager database.TransactionManager,
	auctionRepo AuctionRepository,
	bidRepo BidRepository,
	orderRepo OrderRepository,
	outboxRepo events.OutboxRepository,
	realtime RealtimePublisher,
	buyNowPremium int64,
	logger *slog.Logger,
) *Service {
	return &Service{
		txManager:     txManager,
		auctionRepo:   auctionRepo,
		bidRepo:       bidRepo,
		orderRepo:     orderRepo,
		outboxRepo:    outboxRepo,
		realtime:      realtime,
		buyNowPremium: buyNowPremium,
		logger:        logger,
	}
}

// PlaceBid validates and commits a new bid. The winning-bid flip, the ledger
// insert, the auction update and the notification intents all commit in one
// transaction; the row lock taken by GetByIDForUpdate serializes concurrent
// bids on the same auction.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*PlaceBidResult, error) {
	if err := validateBidCommand(cmd); err != nil {
		return nil, err
	}

	// Captured before the lock is acquired; the auto-extend check must not
	// use a later clock reading
	now := time.Now()

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.auctionRepo.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	if valErr := validateBiddable(a, now); valErr != nil {
		return nil, valErr
	}

	minimum := a.MinimumBid()
	if cmd.Amount < minimum {
		return nil, fmt.Errorf("%w: minimum is %d", ErrBidTooLow, minimum)
	}

	previous, err := s.bidRepo.GetWinning(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load winning bid: %w", err)
	}
	if previous != nil {
		if outbidErr := s.bidRepo.MarkOutbid(ctx, tx, previous.ID); outbidErr != nil {
			return nil, fmt.Errorf("failed to mark previous bid outbid: %w", outbidErr)
		}
	}

	bid := &Bid{
		ID:          uuid.New(),
		AuctionID:   cmd.AuctionID,
		BidderEmail: cmd.BidderEmail,
		BidderName:  cmd.BidderName,
		UserID:      cmd.UserID,
		Amount:      cmd.Amount,
		IsWinning:   true,
		Status:      BidStatusWinning,
		IPAddress:   cmd.IPAddress,
		UserAgent:   cmd.UserAgent,
		CreatedAt:   now,
	}
	if insertErr := s.bidRepo.Insert(ctx, tx, bid); insertErr != nil {
		return nil, fmt.Errorf("failed to insert bid: %w", insertErr)
	}

	previousPrice := a.CurrentPrice
	reserveMet := a.ReserveSatisfied(cmd.Amount)
	reserveJustMet := reserveMet && a.ReservePrice != nil && previousPrice < *a.ReservePrice

	var newEnd *time.Time
	timeExtended := false
	if a.ShouldExtend(now) {
		extended := a.ExtendedEnd()
		newEnd = &extended
		timeExtended = true
	}

	if applyErr := s.auctionRepo.ApplyBid(ctx, tx, a.ID, cmd.Amount, bid.ID, newEnd); applyErr != nil {
		return nil, fmt.Errorf("failed to update auction: %w", applyErr)
	}

	if notifyErr := s.enqueueNotification(ctx, tx, NotifyBidPlaced, cmd.BidderEmail, cmd.BidderName, a, cmd.Amount); notifyErr != nil {
		return nil, notifyErr
	}
	if previous != nil && previous.BidderEmail != cmd.BidderEmail {
		if notifyErr := s.enqueueNotification(ctx, tx, NotifyOutbid, previous.BidderEmail, previous.BidderName, a, previous.Amount); notifyErr != nil {
			return nil, notifyErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	// Reflect the committed state on the returned record
	a.CurrentPrice = cmd.Amount
	a.BidCount++
	a.WinningBidID = &bid.ID
	if newEnd != nil {
		a.ExtendedEndAt = newEnd
	}

	s.publishRealtime(a.ID, RealtimeBidPlaced, BidPlacedEvent{
		AuctionID:    a.ID,
		BidID:        bid.ID,
		Amount:       bid.Amount,
		BidCount:     a.BidCount,
		ReserveMet:   reserveMet,
		TimeExtended: timeExtended,
		EndAt:        a.EffectiveEndAt(),
		Timestamp:    time.Now(),
	})

	return &PlaceBidResult{
		Auction:        a,
		Bid:            bid,
		ReserveMet:     reserveMet,
		ReserveJustMet: reserveJustMet,
		TimeExtended:   timeExtended,
		NewEndAt:       newEnd,
	}, nil
}

// enqueueNotification writes a notification intent to the outbox within tx
func (s *Service) enqueueNotification(ctx context.Context, tx pgx.Tx, kind NotificationKind, email, name string, a *Auction, amount int64) error {
	payload, err := json.Marshal(Notification{
		Kind:           kind,
		RecipientEmail: email,
		RecipientName:  name,
		AuctionID:      a.ID,
		AuctionTitle:   a.Title,
		Amount:         amount,
		EndAt:          a.EffectiveEndAt(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	event := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: kind.EventType().String(),
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

// publishRealtime broadcasts an event without blocking the caller. Publish
// failures are logged and dropped; the bid/settlement already committed.
func (s *Service) publishRealtime(auctionID uuid.UUID, kind string, payload any) {
	if s.realtime == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.realtime.Publish(ctx, auctionID, kind, payload); err != nil {
			s.logger.Warn("realtime publish failed", "auction_id", auctionID, "event", kind, "error", err)
		}
	}()
}
