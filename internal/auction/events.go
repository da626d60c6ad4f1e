package auction

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event written to the outbox
type EventType string

const (
	EventTypeNotifyBidPlaced EventType = "notify.bid_placed"
	EventTypeNotifyOutbid    EventType = "notify.outbid"
	EventTypeNotifyWon       EventType = "notify.won"
	EventTypeNotifyLost      EventType = "notify.lost"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeNotifyBidPlaced, EventTypeNotifyOutbid, EventTypeNotifyWon, EventTypeNotifyLost:
		return true
	default:
		return false
	}
}

// NotificationKind is the kind handed to the notification sink
type NotificationKind string

const (
	NotifyBidPlaced NotificationKind = "bid_placed"
	NotifyOutbid    NotificationKind = "outbid"
	NotifyWon       NotificationKind = "won"
	NotifyLost      NotificationKind = "lost"
)

// EventType maps a notification kind to its outbox event type
func (k NotificationKind) EventType() EventType {
	switch k {
	case NotifyBidPlaced:
		return EventTypeNotifyBidPlaced
	case NotifyOutbid:
		return EventTypeNotifyOutbid
	case NotifyWon:
		return EventTypeNotifyWon
	default:
		return EventTypeNotifyLost
	}
}

// Notification is the intent written to the outbox inside the bid/buy-now/
// settlement transaction and delivered to the external mail sink by the
// worker. Amount is the amount relevant to the recipient (their own bid for
// outbid/lost, the final price for won).
type Notification struct {
	Kind           NotificationKind `json:"kind"`
	RecipientEmail string           `json:"recipient_email"`
	RecipientName  string           `json:"recipient_name,omitempty"`
	AuctionID      uuid.UUID        `json:"auction_id"`
	AuctionTitle   string           `json:"auction_title"`
	Amount         int64            `json:"amount"`
	EndAt          time.Time        `json:"end_at"`
}

// Realtime event kinds broadcast to connected clients
const (
	RealtimeBidPlaced    = "bid.placed"
	RealtimeAuctionEnded = "auction.ended"
)

// BidPlacedEvent is the realtime payload broadcast after an accepted bid
type BidPlacedEvent struct {
	AuctionID    uuid.UUID `json:"auction_id"`
	BidID        uuid.UUID `json:"bid_id"`
	Amount       int64     `json:"amount"`
	BidCount     int       `json:"bid_count"`
	ReserveMet   bool      `json:"reserve_met"`
	TimeExtended bool      `json:"time_extended"`
	EndAt        time.Time `json:"end_at"`
	Timestamp    time.Time `json:"timestamp"`
}

// AuctionEndedEvent is the realtime payload broadcast when an auction reaches
// a terminal state, whether by settlement or buy-now
type AuctionEndedEvent struct {
	AuctionID  uuid.UUID     `json:"auction_id"`
	Status     AuctionStatus `json:"status"`
	FinalPrice int64         `json:"final_price"`
	Timestamp  time.Time     `json:"timestamp"`
}
