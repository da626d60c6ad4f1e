package auction

import (
	"context"
	"fmt"
	"time"
)

// buyNowTolerance absorbs rounding at the client boundary; amounts are cents
const buyNowTolerance = int64(1)

// buyNowPrice computes the only acceptable instant-purchase price. The value
// is always computed here and never taken from the client: the premium on top
// of the current price when there is no reserve or the reserve is already
// met, the reserve price itself while it is unmet.
func buyNowPrice(a *Auction, premium int64) int64 {
	if a.ReservePrice != nil && a.CurrentPrice < *a.ReservePrice {
		return *a.ReservePrice
	}
	return a.CurrentPrice + premium
}

// validateBuyNowPrice checks the submitted price against the computed one
func validateBuyNowPrice(submitted, expected int64, a *Auction) error {
	diff := submitted - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > buyNowTolerance {
		return fmt.Errorf("%w: expected %d", ErrBuyNowPriceMismatch, expected)
	}
	if !a.ReserveSatisfied(expected) {
		return ErrBuyNowBelowReserve
	}
	return nil
}

// BuyNow ends an auction immediately at the server-computed buy-now price.
// This is a terminal transition, not a bid: the auction leaves active in this
// transaction and the settlement sweep will never pick it up.
func (s *Service) BuyNow(ctx context.Context, cmd BuyNowCommand) (*BuyNowResult, error) {
	if cmd.BuyerEmail == "" {
		return nil, ErrMissingBidder
	}

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

	finalPrice := buyNowPrice(a, s.buyNowPremium)
	if valErr := validateBuyNowPrice(cmd.Price, finalPrice, a); valErr != nil {
		return nil, valErr
	}

	// The previous highest bidder, if any, gets an ended notification with
	// their own bid amount
	previous, err := s.bidRepo.GetWinning(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load winning bid: %w", err)
	}

	closed, err := s.auctionRepo.Close(ctx, tx, a.ID, StatusEnded, finalPrice, &cmd.BuyerEmail, &cmd.BuyerName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to close auction: %w", err)
	}
	if !closed {
		return nil, ErrAuctionNotActive
	}

	if notifyErr := s.enqueueNotification(ctx, tx, NotifyWon, cmd.BuyerEmail, cmd.BuyerName, a, finalPrice); notifyErr != nil {
		return nil, notifyErr
	}
	if previous != nil && previous.BidderEmail != cmd.BuyerEmail {
		if notifyErr := s.enqueueNotification(ctx, tx, NotifyLost, previous.BidderEmail, previous.BidderName, a, previous.Amount); notifyErr != nil {
			return nil, notifyErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	a.Status = StatusEnded
	a.IsActive = false
	a.CurrentPrice = finalPrice
	a.WinnerEmail = &cmd.BuyerEmail
	a.WinnerName = &cmd.BuyerName

	s.publishRealtime(a.ID, RealtimeAuctionEnded, AuctionEndedEvent{
		AuctionID:  a.ID,
		Status:     StatusEnded,
		FinalPrice: finalPrice,
		Timestamp:  time.Now(),
	})

	return &BuyNowResult{
		Auction:    a,
		FinalPrice: finalPrice,
	}, nil
}
