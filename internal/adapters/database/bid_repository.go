package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotward/auctioneer/internal/auction"
)

const bidColumns = `
	id, auction_id, bidder_email, bidder_name, user_id, amount,
	is_winning, status, ip_address, user_agent, created_at
`

// PostgresBidRepository implements auction.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// Insert appends a bid within a transaction
func (r *PostgresBidRepository) Insert(ctx context.Context, tx pgx.Tx, bid *auction.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_email, bidder_name, user_id, amount, is_winning, status, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.BidderEmail,
		bid.BidderName,
		bid.UserID,
		bid.Amount,
		bid.IsWinning,
		bid.Status,
		bid.IPAddress,
		bid.UserAgent,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetWinning returns the currently winning bid, or nil when the auction has
// no bids yet
func (r *PostgresBidRepository) GetWinning(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*auction.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 AND is_winning = true`

	bid, err := scanBid(tx.QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get winning bid: %w", err)
	}
	return bid, nil
}

// MarkOutbid flips a superseded winning bid to outbid
func (r *PostgresBidRepository) MarkOutbid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	return r.setStatus(ctx, tx, bidID, auction.BidStatusOutbid, false)
}

// MarkWon flips the winning bid to won at settlement
func (r *PostgresBidRepository) MarkWon(ctx context.Context, tx pgx.Tx, bidID uuid.UUID) error {
	return r.setStatus(ctx, tx, bidID, auction.BidStatusWon, true)
}

func (r *PostgresBidRepository) setStatus(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, status auction.BidStatus, isWinning bool) error {
	query := `
		UPDATE bids
		SET status = $1, is_winning = $2
		WHERE id = $3
	`
	result, err := tx.Exec(ctx, query, status, isWinning, bidID)
	if err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid not found")
	}
	return nil
}

// ListRecent returns the most recent bids for an auction, newest first
func (r *PostgresBidRepository) ListRecent(ctx context.Context, auctionID uuid.UUID, limit int) ([]*auction.Bid, error) {
	query := `SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*auction.Bid
	for rows.Next() {
		bid, scanErr := scanBid(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", scanErr)
		}
		result = append(result, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return result, nil
}

// ListBidderEmails returns the distinct bidder emails on an auction
func (r *PostgresBidRepository) ListBidderEmails(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT bidder_email
		FROM bids
		WHERE auction_id = $1 AND status != 'rejected'
	`
	rows, err := tx.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bidder emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan bidder email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bidder emails: %w", err)
	}
	return emails, nil
}

func scanBid(row pgx.Row) (*auction.Bid, error) {
	var bid auction.Bid
	err := row.Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderEmail,
		&bid.BidderName,
		&bid.UserID,
		&bid.Amount,
		&bid.IsWinning,
		&bid.Status,
		&bid.IPAddress,
		&bid.UserAgent,
		&bid.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
