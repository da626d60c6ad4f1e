package auction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldSell(t *testing.T) {
	tests := []struct {
		name    string
		auction Auction
		winning *Bid
		want    bool
	}{
		{
			name:    "no bids never sells",
			auction: Auction{CurrentPrice: 10000},
			winning: nil,
			want:    false,
		},
		{
			name:    "winning bid without reserve sells",
			auction: Auction{CurrentPrice: 12000},
			winning: &Bid{Amount: 12000},
			want:    true,
		},
		{
			name:    "reserve unmet goes to no sale",
			auction: Auction{CurrentPrice: 12000, ReservePrice: int64Ptr(50000)},
			winning: &Bid{Amount: 12000},
			want:    false,
		},
		{
			name:    "reserve met exactly sells",
			auction: Auction{CurrentPrice: 50000, ReservePrice: int64Ptr(50000)},
			winning: &Bid{Amount: 50000},
			want:    true,
		},
		{
			name:    "non-positive winning amount never sells",
			auction: Auction{CurrentPrice: 0},
			winning: &Bid{Amount: 0},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldSell(&tt.auction, tt.winning))
		})
	}
}
