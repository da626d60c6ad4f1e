//go:build integration

package auction_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infradb "github.com/lotward/auctioneer/internal/adapters/database"
	"github.com/lotward/auctioneer/internal/auction"
	"github.com/lotward/auctioneer/pkg/database"
	"github.com/lotward/auctioneer/pkg/events"
	"github.com/lotward/auctioneer/pkg/testhelpers"
)

// noopRealtime drops realtime events; broadcast delivery is covered elsewhere
type noopRealtime struct{}

func (noopRealtime) Publish(ctx context.Context, auctionID uuid.UUID, eventKind string, payload any) error {
	return nil
}

type testServices struct {
	Service     *auction.Service
	TxManager   database.TransactionManager
	AuctionRepo auction.AuctionRepository
	BidRepo     auction.BidRepository
	OutboxRepo  events.OutboxRepository
}

func setupService(pool *pgxpool.Pool) *testServices {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	txManager := database.NewPostgresTransactionManager(pool, 5*time.Second)
	auctionRepo := infradb.NewPostgresAuctionRepository(pool)
	bidRepo := infradb.NewPostgresBidRepository(pool)
	orderRepo := infradb.NewPostgresOrderRepository(pool)
	outboxRepo := infradb.NewPostgresOutboxRepository(pool)

	service := auction.NewService(
		txManager,
		auctionRepo,
		bidRepo,
		orderRepo,
		outboxRepo,
		noopRealtime{},
		1000, // buy-now premium: $10.00
		logger,
	)

	return &testServices{
		Service:     service,
		TxManager:   txManager,
		AuctionRepo: auctionRepo,
		BidRepo:     bidRepo,
		OutboxRepo:  outboxRepo,
	}
}

type seedOpts struct {
	StartingPrice int64
	BidIncrement  int64
	ReservePrice  *int64
	EndAt         time.Time
	AutoExtend    bool
	ThresholdMin  int
	ExtendByMin   int
	Status        auction.AuctionStatus
}

func seedAuction(t *testing.T, pool *pgxpool.Pool, opts seedOpts) uuid.UUID {
	t.Helper()
	id := uuid.New()
	status := opts.Status
	if status == "" {
		status = auction.StatusActive
	}
	query := `
		INSERT INTO auctions (id, title, description, starting_price, current_price, reserve_price,
			bid_increment, start_at, end_at, status, is_active, auto_extend, extend_threshold_min, extend_by_min)
		VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := pool.Exec(context.Background(), query,
		id,
		"Vintage Guitar",
		"A 1960s hollow body",
		opts.StartingPrice,
		opts.ReservePrice,
		opts.BidIncrement,
		time.Now().Add(-1*time.Hour),
		opts.EndAt,
		status,
		status == auction.StatusActive,
		opts.AutoExtend,
		opts.ThresholdMin,
		opts.ExtendByMin,
	)
	require.NoError(t, err, "Failed to seed auction")
	return id
}

func placeBid(t *testing.T, svc *testServices, auctionID uuid.UUID, email string, amount int64) *auction.PlaceBidResult {
	t.Helper()
	res, err := svc.Service.PlaceBid(context.Background(), auction.PlaceBidCommand{
		AuctionID:   auctionID,
		Amount:      amount,
		BidderEmail: email,
		BidderName:  email,
	})
	require.NoError(t, err)
	return res
}

func pendingEventTypes(t *testing.T, svc *testServices) []string {
	t.Helper()
	ctx := context.Background()
	tx, err := svc.TxManager.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	pending, err := svc.OutboxRepo.GetPendingEvents(ctx, tx, 50)
	require.NoError(t, err)

	types := make([]string, 0, len(pending))
	for _, e := range pending {
		types = append(types, e.EventType)
	}
	return types
}

func TestPlaceBid_MinimumIncrement(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	// Start $100.00, increment $10.00
	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         time.Now().Add(24 * time.Hour),
	})

	// First bid at the starting price is accepted
	res := placeBid(t, svc, auctionID, "alice@example.com", 10000)
	assert.Equal(t, int64(10000), res.Auction.CurrentPrice)
	assert.Equal(t, 1, res.Auction.BidCount)
	assert.True(t, res.Bid.IsWinning)

	// $105.00 is below current + increment
	_, err := svc.Service.PlaceBid(ctx, auction.PlaceBidCommand{
		AuctionID:   auctionID,
		Amount:      10500,
		BidderEmail: "bob@example.com",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auction.ErrBidTooLow)

	// $110.00 is accepted and flips the previous winner to outbid
	res2 := placeBid(t, svc, auctionID, "bob@example.com", 11000)
	assert.Equal(t, int64(11000), res2.Auction.CurrentPrice)
	assert.Equal(t, 2, res2.Auction.BidCount)

	bids, err := svc.BidRepo.ListRecent(ctx, auctionID, 10)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, auction.BidStatusWinning, bids[0].Status)
	assert.Equal(t, auction.BidStatusOutbid, bids[1].Status)
	assert.False(t, bids[1].IsWinning)

	// Notification intents: placed, placed+outbid
	types := pendingEventTypes(t, svc)
	assert.ElementsMatch(t, []string{
		"notify.bid_placed",
		"notify.bid_placed",
		"notify.outbid",
	}, types)
}

func TestPlaceBid_ConcurrentSameAuction(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         time.Now().Add(24 * time.Hour),
	})

	// Two bids race at the same amount; the row lock serializes them so
	// exactly one wins and the other fails the minimum check.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Service.PlaceBid(ctx, auction.PlaceBidCommand{
				AuctionID:   auctionID,
				Amount:      10000,
				BidderEmail: "racer@example.com",
			})
		}(i)
	}
	wg.Wait()

	var accepted, rejected int
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, auction.ErrBidTooLow)
			rejected++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)

	a, err := svc.Service.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.BidCount)
	assert.Equal(t, int64(10000), a.CurrentPrice)
}

func TestPlaceBid_AntiSnipingExtension(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)

	// Ends in 2 minutes with a 5 minute threshold
	endAt := time.Now().Add(2 * time.Minute)
	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         endAt,
		AutoExtend:    true,
		ThresholdMin:  5,
		ExtendByMin:   5,
	})

	res := placeBid(t, svc, auctionID, "sniper@example.com", 10000)
	assert.True(t, res.TimeExtended)
	require.NotNil(t, res.NewEndAt)
	assert.WithinDuration(t, endAt.Add(5*time.Minute), *res.NewEndAt, time.Second)

	// A second late bid extends again from the already extended end
	res2 := placeBid(t, svc, auctionID, "counter@example.com", 11000)
	assert.True(t, res2.TimeExtended)
	require.NotNil(t, res2.NewEndAt)
	assert.WithinDuration(t, endAt.Add(10*time.Minute), *res2.NewEndAt, time.Second)
}

func TestPlaceBid_AuctionNotActive(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         time.Now().Add(24 * time.Hour),
		Status:        auction.StatusPending,
	})

	_, err := svc.Service.PlaceBid(ctx, auction.PlaceBidCommand{
		AuctionID:   auctionID,
		Amount:      10000,
		BidderEmail: "early@example.com",
	})
	assert.ErrorIs(t, err, auction.ErrAuctionNotActive)

	_, err = svc.Service.PlaceBid(ctx, auction.PlaceBidCommand{
		AuctionID:   uuid.New(),
		Amount:      10000,
		BidderEmail: "lost@example.com",
	})
	assert.ErrorIs(t, err, auction.ErrAuctionNotFound)
}

func TestPlaceBid_ReserveProgress(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)

	reserve := int64(50000)
	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		ReservePrice:  &reserve,
		EndAt:         time.Now().Add(24 * time.Hour),
	})

	res := placeBid(t, svc, auctionID, "alice@example.com", 12000)
	assert.False(t, res.ReserveMet)
	assert.False(t, res.ReserveJustMet)

	// Crossing the reserve is flagged exactly once
	res2 := placeBid(t, svc, auctionID, "bob@example.com", 50000)
	assert.True(t, res2.ReserveMet)
	assert.True(t, res2.ReserveJustMet)

	res3 := placeBid(t, svc, auctionID, "carol@example.com", 51000)
	assert.True(t, res3.ReserveMet)
	assert.False(t, res3.ReserveJustMet)
}

func TestSettleExpired_SoldWithOrder(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         time.Now().Add(time.Minute),
	})
	placeBid(t, svc, auctionID, "alice@example.com", 10000)
	placeBid(t, svc, auctionID, "bob@example.com", 11000)

	// Force expiry
	_, err := testDB.Pool.Exec(ctx, `UPDATE auctions SET end_at = NOW() - INTERVAL '1 minute' WHERE id = $1`, auctionID)
	require.NoError(t, err)

	sweep, err := svc.Service.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Processed)
	assert.Equal(t, 1, sweep.Sold)
	assert.Equal(t, 0, sweep.NoSale)
	assert.Empty(t, sweep.Errors)

	a, err := svc.Service.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusSold, a.Status)
	assert.False(t, a.IsActive)
	require.NotNil(t, a.WinnerEmail)
	assert.Equal(t, "bob@example.com", *a.WinnerEmail)
	assert.Equal(t, int64(11000), a.CurrentPrice)

	// Winning bid flipped to won, loser to lost
	bids, err := svc.BidRepo.ListRecent(ctx, auctionID, 10)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, auction.BidStatusWon, bids[0].Status)

	// Exactly one order for the auction
	var orderCount int
	var orderAmount int64
	err = testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MAX(amount), 0) FROM orders WHERE auction_id = $1`, auctionID).
		Scan(&orderCount, &orderAmount)
	require.NoError(t, err)
	assert.Equal(t, 1, orderCount)
	assert.Equal(t, int64(11000), orderAmount)

	// Second sweep is a no-op
	sweep2, err := svc.Service.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sweep2.Processed)

	err = testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE auction_id = $1`, auctionID).Scan(&orderCount)
	require.NoError(t, err)
	assert.Equal(t, 1, orderCount, "Re-running settlement must not duplicate orders")
}

func TestSettleExpired_ReserveNotMet(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	reserve := int64(50000)
	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		ReservePrice:  &reserve,
		EndAt:         time.Now().Add(time.Minute),
	})
	placeBid(t, svc, auctionID, "alice@example.com", 12000)

	_, err := testDB.Pool.Exec(ctx, `UPDATE auctions SET end_at = NOW() - INTERVAL '1 minute' WHERE id = $1`, auctionID)
	require.NoError(t, err)

	sweep, err := svc.Service.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.NoSale)

	a, err := svc.Service.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusNoSale, a.Status)
	assert.Nil(t, a.WinnerEmail)

	var orderCount int
	err = testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE auction_id = $1`, auctionID).Scan(&orderCount)
	require.NoError(t, err)
	assert.Equal(t, 0, orderCount, "No order on a failed reserve")
}

func TestSettleExpired_NoBids(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         time.Now().Add(-time.Minute),
	})

	sweep, err := svc.Service.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.NoSale)

	a, err := svc.Service.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusNoSale, a.Status)
}

func TestBuyNow_ReserveUnmetPricesAtReserve(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	reserve := int64(50000)
	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		ReservePrice:  &reserve,
		EndAt:         time.Now().Add(24 * time.Hour),
	})
	placeBid(t, svc, auctionID, "alice@example.com", 12000)

	// A stale price is rejected without touching the auction
	_, err := svc.Service.BuyNow(ctx, auction.BuyNowCommand{
		AuctionID:  auctionID,
		Price:      13000,
		BuyerEmail: "dave@example.com",
	})
	assert.ErrorIs(t, err, auction.ErrBuyNowPriceMismatch)

	// Reserve unmet: buy-now price is the reserve
	res, err := svc.Service.BuyNow(ctx, auction.BuyNowCommand{
		AuctionID:  auctionID,
		Price:      50000,
		BuyerEmail: "dave@example.com",
		BuyerName:  "Dave",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), res.FinalPrice)
	assert.Equal(t, auction.StatusEnded, res.Auction.Status)

	// Ended by buy-now: further bids rejected, sweep skips it
	_, err = svc.Service.PlaceBid(ctx, auction.PlaceBidCommand{
		AuctionID:   auctionID,
		Amount:      60000,
		BidderEmail: "late@example.com",
	})
	assert.ErrorIs(t, err, auction.ErrAuctionNotActive)

	sweep, err := svc.Service.SettleExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sweep.Processed)

	// Buyer won, previous leader lost
	types := pendingEventTypes(t, svc)
	assert.Contains(t, types, "notify.won")
	assert.Contains(t, types, "notify.lost")
}

func TestBuyNow_PremiumPricing(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         time.Now().Add(24 * time.Hour),
	})
	placeBid(t, svc, auctionID, "alice@example.com", 10000)

	// No reserve: current price plus the configured premium
	res, err := svc.Service.BuyNow(ctx, auction.BuyNowCommand{
		AuctionID:  auctionID,
		Price:      11000,
		BuyerEmail: "dave@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11000), res.FinalPrice)

	a, err := svc.Service.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, a.Status)
	require.NotNil(t, a.WinnerEmail)
	assert.Equal(t, "dave@example.com", *a.WinnerEmail)
}

func TestRecentBids_MasksEmails(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../migrations")
	defer testDB.Close()
	svc := setupService(testDB.Pool)
	ctx := context.Background()

	auctionID := seedAuction(t, testDB.Pool, seedOpts{
		StartingPrice: 10000,
		BidIncrement:  1000,
		EndAt:         time.Now().Add(24 * time.Hour),
	})
	placeBid(t, svc, auctionID, "alice@example.com", 10000)
	placeBid(t, svc, auctionID, "bob@example.com", 11000)

	views, err := svc.Service.RecentBids(ctx, auctionID, 10)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "bo***@example.com", views[0].BidderEmail)
	assert.Equal(t, "al***@example.com", views[1].BidderEmail)
	assert.Equal(t, int64(11000), views[0].Amount)

	_, err = svc.Service.RecentBids(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, auction.ErrAuctionNotFound)
}
