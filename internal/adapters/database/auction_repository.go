package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotward/auctioneer/internal/auction"
	pkgdb "github.com/lotward/auctioneer/pkg/database"
)

const auctionColumns = `
	id, title, description, images, starting_price, current_price,
	reserve_price, bid_increment, bid_count, start_at, end_at,
	extended_end_at, status, is_active, auto_extend, extend_threshold_min,
	extend_by_min, winner_email, winner_name, winning_bid_id, metadata,
	created_at, updated_at
`

// PostgresAuctionRepository implements auction.AuctionRepository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// GetByID retrieves an auction by its ID (non-transactional read)
func (r *PostgresAuctionRepository) GetByID(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return r.getByID(ctx, r.pool, auctionID, false)
}

// GetByIDForUpdate retrieves an auction and locks its row.
// Only one transaction can mutate an auction at a time; this is what
// serializes concurrent bids, buy-now and settlement on the same auction.
func (r *PostgresAuctionRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auction.Auction, error) {
	return r.getByID(ctx, tx, auctionID, true)
}

func (r *PostgresAuctionRepository) getByID(ctx context.Context, db pkgdb.DBTX, auctionID uuid.UUID, forUpdate bool) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var a auction.Auction
	err := db.QueryRow(ctx, query, auctionID).Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.Images,
		&a.StartingPrice,
		&a.CurrentPrice,
		&a.ReservePrice,
		&a.BidIncrement,
		&a.BidCount,
		&a.StartAt,
		&a.EndAt,
		&a.ExtendedEndAt,
		&a.Status,
		&a.IsActive,
		&a.AutoExtend,
		&a.ExtendThresholdMin,
		&a.ExtendByMin,
		&a.WinnerEmail,
		&a.WinnerName,
		&a.WinningBidID,
		&a.Metadata,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &a, nil
}

// ListExpiredActive returns IDs of active auctions whose effective end time
// has passed. The status predicate here plus the re-check under the row lock
// make the settlement transition exactly-once.
func (r *PostgresAuctionRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM auctions
		WHERE status = 'active'
		  AND is_active = true
		  AND COALESCE(extended_end_at, end_at) <= $1
		ORDER BY COALESCE(extended_end_at, end_at) ASC
	`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired auctions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}
	return ids, nil
}

// ApplyBid updates the auction after an accepted bid within a transaction
func (r *PostgresAuctionRepository) ApplyBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, price int64, winningBidID uuid.UUID, extendedEnd *time.Time) error {
	query := `
		UPDATE auctions
		SET current_price = $1,
		    bid_count = bid_count + 1,
		    winning_bid_id = $2,
		    extended_end_at = COALESCE($3, extended_end_at),
		    updated_at = NOW()
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, price, winningBidID, extendedEnd, auctionID)
	if err != nil {
		return fmt.Errorf("failed to apply bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrAuctionNotFound
	}
	return nil
}

// Close transitions an auction out of active. The status = 'active' guard
// means only one of two racing terminal transitions can win; Close reports
// false when this transaction lost.
func (r *PostgresAuctionRepository) Close(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, status auction.AuctionStatus, finalPrice int64, winnerEmail, winnerName *string, winningBidID *uuid.UUID) (bool, error) {
	query := `
		UPDATE auctions
		SET status = $1,
		    is_active = false,
		    current_price = $2,
		    winner_email = $3,
		    winner_name = $4,
		    winning_bid_id = COALESCE($5, winning_bid_id),
		    updated_at = NOW()
		WHERE id = $6 AND status = 'active'
	`
	result, err := tx.Exec(ctx, query, status, finalPrice, winnerEmail, winnerName, winningBidID, auctionID)
	if err != nil {
		return false, fmt.Errorf("failed to close auction: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
