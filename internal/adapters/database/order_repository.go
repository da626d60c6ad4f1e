package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotward/auctioneer/internal/auction"
)

// PostgresOrderRepository implements auction.OrderRepository using pgx
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository
func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

// Insert creates the order within the settlement transaction. The unique
// constraint on auction_id backs the exactly-one-order-per-sale invariant.
func (r *PostgresOrderRepository) Insert(ctx context.Context, tx pgx.Tx, order *auction.Order) error {
	query := `
		INSERT INTO orders (id, auction_id, bid_id, buyer_email, buyer_name, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		order.ID,
		order.AuctionID,
		order.BidID,
		order.BuyerEmail,
		order.BuyerName,
		order.Amount,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}
