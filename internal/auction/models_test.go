package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestAuctionStatus_IsValid(t *testing.T) {
	tests := []struct {
		status AuctionStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusActive, true},
		{StatusEnded, true},
		{StatusSold, true},
		{StatusNoSale, true},
		{StatusCancelled, true},
		{AuctionStatus("archived"), false},
		{AuctionStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsValid())
		})
	}
}

func TestAuctionStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusEnded.IsTerminal())
	assert.True(t, StatusSold.IsTerminal())
	assert.True(t, StatusNoSale.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestAuction_MinimumBid(t *testing.T) {
	tests := []struct {
		name    string
		auction Auction
		want    int64
	}{
		{
			name:    "first bid matches starting price",
			auction: Auction{StartingPrice: 10000, CurrentPrice: 10000, BidIncrement: 1000, BidCount: 0},
			want:    10000,
		},
		{
			name:    "subsequent bid requires current plus increment",
			auction: Auction{StartingPrice: 10000, CurrentPrice: 10000, BidIncrement: 1000, BidCount: 1},
			want:    11000,
		},
		{
			name:    "increment applies to the latest price",
			auction: Auction{StartingPrice: 10000, CurrentPrice: 13500, BidIncrement: 500, BidCount: 7},
			want:    14000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.auction.MinimumBid())
		})
	}
}

func TestAuction_ReserveSatisfied(t *testing.T) {
	tests := []struct {
		name    string
		reserve *int64
		price   int64
		want    bool
	}{
		{"no reserve always satisfied", nil, 1, true},
		{"below reserve", int64Ptr(50000), 49999, false},
		{"exactly at reserve is inclusive", int64Ptr(50000), 50000, true},
		{"above reserve", int64Ptr(50000), 50001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Auction{ReservePrice: tt.reserve}
			assert.Equal(t, tt.want, a.ReserveSatisfied(tt.price))
		})
	}
}

func TestAuction_EffectiveEndAt(t *testing.T) {
	endAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	extended := endAt.Add(5 * time.Minute)

	a := Auction{EndAt: endAt}
	assert.Equal(t, endAt, a.EffectiveEndAt())

	a.ExtendedEndAt = &extended
	assert.Equal(t, extended, a.EffectiveEndAt())
}

func TestAuction_ShouldExtend(t *testing.T) {
	endAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		auction Auction
		now     time.Time
		want    bool
	}{
		{
			name:    "disabled auto extend never extends",
			auction: Auction{EndAt: endAt, AutoExtend: false, ExtendThresholdMin: 5, ExtendByMin: 5},
			now:     endAt.Add(-1 * time.Minute),
			want:    false,
		},
		{
			name:    "bid outside threshold",
			auction: Auction{EndAt: endAt, AutoExtend: true, ExtendThresholdMin: 5, ExtendByMin: 5},
			now:     endAt.Add(-10 * time.Minute),
			want:    false,
		},
		{
			name:    "bid inside threshold extends",
			auction: Auction{EndAt: endAt, AutoExtend: true, ExtendThresholdMin: 5, ExtendByMin: 5},
			now:     endAt.Add(-2 * time.Minute),
			want:    true,
		},
		{
			name:    "threshold measured against extended end",
			auction: func() Auction {
				ext := endAt.Add(30 * time.Minute)
				return Auction{EndAt: endAt, ExtendedEndAt: &ext, AutoExtend: true, ExtendThresholdMin: 5, ExtendByMin: 5}
			}(),
			now:  endAt.Add(-2 * time.Minute),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.auction.ShouldExtend(tt.now))
		})
	}
}

func TestAuction_ExtendedEnd(t *testing.T) {
	endAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Auction{EndAt: endAt, ExtendByMin: 5}
	assert.Equal(t, endAt.Add(5*time.Minute), a.ExtendedEnd())

	// Extensions stack on the already extended end
	ext := endAt.Add(5 * time.Minute)
	a.ExtendedEndAt = &ext
	assert.Equal(t, endAt.Add(10*time.Minute), a.ExtendedEnd())
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"al@example.com", "al***@example.com"},
		{"a@example.com", "a***@example.com"},
		{"no-at-sign", "no***"},
		{"ab", "ab"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskEmail(tt.email))
		})
	}
}
