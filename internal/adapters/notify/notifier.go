package notify

import (
	"context"
	"log/slog"

	"github.com/lotward/auctioneer/internal/auction"
)

// LogNotifier is the stand-in for the external mail gateway: it records the
// notification and succeeds. Swap it out for a real sink without touching the
// consumer.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements auction.Notifier
func (n *LogNotifier) Notify(ctx context.Context, notification auction.Notification) error {
	n.logger.Info("notification",
		"kind", notification.Kind,
		"recipient", auction.MaskEmail(notification.RecipientEmail),
		"auction_id", notification.AuctionID,
		"auction_title", notification.AuctionTitle,
		"amount", notification.Amount,
	)
	return nil
}
