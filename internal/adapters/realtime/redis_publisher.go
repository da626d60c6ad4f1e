package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChannelForAuction is the Pub/Sub channel carrying one auction's events.
// Browser-facing gateways subscribe with the pattern "auction_events:*".
func ChannelForAuction(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction_events:%s", auctionID)
}

// envelope is the wire format on the channel
type envelope struct {
	Event     string    `json:"event"`
	AuctionID uuid.UUID `json:"auction_id"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisPublisher implements auction.RealtimePublisher over Redis Pub/Sub.
// Publishing is best-effort: subscribers that are offline simply miss events.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a new Redis realtime publisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish broadcasts an auction event to its channel
func (p *RedisPublisher) Publish(ctx context.Context, auctionID uuid.UUID, eventKind string, payload any) error {
	body, err := json.Marshal(envelope{
		Event:     eventKind,
		AuctionID: auctionID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal realtime event: %w", err)
	}

	if err := p.client.Publish(ctx, ChannelForAuction(auctionID), body).Err(); err != nil {
		return fmt.Errorf("failed to publish realtime event: %w", err)
	}
	return nil
}
