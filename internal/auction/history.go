package auction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const defaultHistoryLimit = 20

// GetAuction retrieves a single auction record
func (s *Service) GetAuction(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	return s.auctionRepo.GetByID(ctx, auctionID)
}

// RecentBids returns the most recent bids on an auction, newest first, with
// bidder emails masked for public consumption
func (s *Service) RecentBids(ctx context.Context, auctionID uuid.UUID, limit int) ([]BidView, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	// NotFound beats an empty list for unknown auctions
	if _, err := s.auctionRepo.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}

	bids, err := s.bidRepo.ListRecent(ctx, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	views := make([]BidView, len(bids))
	for i, b := range bids {
		views[i] = BidView{
			ID:          b.ID,
			BidderEmail: MaskEmail(b.BidderEmail),
			BidderName:  b.BidderName,
			Amount:      b.Amount,
			IsWinning:   b.IsWinning,
			Status:      b.Status,
			CreatedAt:   b.CreatedAt,
		}
	}
	return views, nil
}
