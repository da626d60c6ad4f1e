package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// settleOutcome is the result of resolving a single expired auction
type settleOutcome int

const (
	outcomeSkipped settleOutcome = iota
	outcomeSold
	outcomeNoSale
)

// shouldSell decides the terminal status for an expired auction: sold when a
// winning bid with a positive amount exists and the reserve is met, no_sale
// otherwise
func shouldSell(a *Auction, winning *Bid) bool {
	if winning == nil || winning.Amount <= 0 {
		return false
	}
	return a.ReserveSatisfied(a.CurrentPrice)
}

// SettleExpired resolves every active auction whose effective end time has
// passed. Each auction settles in its own transaction so one bad record never
// halts the sweep; failures are collected into the result. Running the sweep
// again over the same data is a no-op.
func (s *Service) SettleExpired(ctx context.Context) (*SweepResult, error) {
	ids, err := s.auctionRepo.ListExpiredActive(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired auctions: %w", err)
	}

	result := &SweepResult{}
	for _, id := range ids {
		outcome, settleErr := s.settleOne(ctx, id)
		if settleErr != nil {
			s.logger.Error("failed to settle auction", "auction_id", id, "error", settleErr)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, settleErr))
			continue
		}
		switch outcome {
		case outcomeSold:
			result.Processed++
			result.Sold++
		case outcomeNoSale:
			result.Processed++
			result.NoSale++
		}
	}

	return result, nil
}

// settleOne resolves a single auction. The status is re-checked under the row
// lock: if a concurrent buy-now (or another sweep) already closed the
// auction, settleOne no-ops cleanly.
func (s *Service) settleOne(ctx context.Context, auctionID uuid.UUID) (settleOutcome, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := s.auctionRepo.GetByIDForUpdate(ctx, tx, auctionID)
	if err != nil {
		return outcomeSkipped, err
	}

	if a.Status != StatusActive || !a.IsActive {
		// Lost the race against a buy-now or a concurrent sweep
		return outcomeSkipped, nil
	}
	if a.EffectiveEndAt().After(time.Now()) {
		// Extended by a bid after selection
		return outcomeSkipped, nil
	}

	winning, err := s.bidRepo.GetWinning(ctx, tx, auctionID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("failed to load winning bid: %w", err)
	}

	var outcome settleOutcome
	var leaderEmail string
	if shouldSell(a, winning) {
		outcome = outcomeSold
		leaderEmail = winning.BidderEmail

		closed, closeErr := s.auctionRepo.Close(ctx, tx, a.ID, StatusSold, winning.Amount, &winning.BidderEmail, &winning.BidderName, &winning.ID)
		if closeErr != nil {
			return outcomeSkipped, fmt.Errorf("failed to close auction: %w", closeErr)
		}
		if !closed {
			return outcomeSkipped, nil
		}

		if wonErr := s.bidRepo.MarkWon(ctx, tx, winning.ID); wonErr != nil {
			return outcomeSkipped, fmt.Errorf("failed to mark bid won: %w", wonErr)
		}

		order := &Order{
			ID:         uuid.New(),
			AuctionID:  a.ID,
			BidID:      winning.ID,
			BuyerEmail: winning.BidderEmail,
			BuyerName:  winning.BidderName,
			Amount:     winning.Amount,
			Status:     OrderStatusCreated,
			CreatedAt:  time.Now(),
		}
		if orderErr := s.orderRepo.Insert(ctx, tx, order); orderErr != nil {
			return outcomeSkipped, fmt.Errorf("failed to create order: %w", orderErr)
		}

		if notifyErr := s.enqueueNotification(ctx, tx, NotifyWon, winning.BidderEmail, winning.BidderName, a, winning.Amount); notifyErr != nil {
			return outcomeSkipped, notifyErr
		}
	} else {
		outcome = outcomeNoSale

		closed, closeErr := s.auctionRepo.Close(ctx, tx, a.ID, StatusNoSale, a.CurrentPrice, nil, nil, nil)
		if closeErr != nil {
			return outcomeSkipped, fmt.Errorf("failed to close auction: %w", closeErr)
		}
		if !closed {
			return outcomeSkipped, nil
		}

		// The leading bid stays in the ledger as-is; its bidder still
		// learns they did not win
		if winning != nil {
			leaderEmail = winning.BidderEmail
			if notifyErr := s.enqueueNotification(ctx, tx, NotifyLost, winning.BidderEmail, winning.BidderName, a, winning.Amount); notifyErr != nil {
				return outcomeSkipped, notifyErr
			}
		}
	}

	// Every other bidder is told the auction ended; emails are distinct in
	// the query so nobody is notified twice
	emails, err := s.bidRepo.ListBidderEmails(ctx, tx, auctionID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("failed to list bidder emails: %w", err)
	}
	for _, email := range emails {
		if email == leaderEmail {
			continue
		}
		if notifyErr := s.enqueueNotification(ctx, tx, NotifyLost, email, "", a, a.CurrentPrice); notifyErr != nil {
			return outcomeSkipped, notifyErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return outcomeSkipped, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	status := StatusSold
	if outcome == outcomeNoSale {
		status = StatusNoSale
	}
	s.publishRealtime(a.ID, RealtimeAuctionEnded, AuctionEndedEvent{
		AuctionID:  a.ID,
		Status:     status,
		FinalPrice: a.CurrentPrice,
		Timestamp:  time.Now(),
	})

	return outcome, nil
}

// Scheduler runs the settlement sweep on a fixed interval
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a settlement scheduler
func NewScheduler(service *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the sweep loop and blocks until ctx is cancelled
func (sc *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result, err := sc.service.SettleExpired(ctx)
			if err != nil {
				sc.logger.Error("settlement sweep failed", "error", err)
				continue
			}
			if result.Processed > 0 || len(result.Errors) > 0 {
				sc.logger.Info("settlement sweep finished",
					"processed", result.Processed,
					"sold", result.Sold,
					"no_sale", result.NoSale,
					"errors", len(result.Errors),
				)
			}
		}
	}
}
