package auction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuyNowPrice(t *testing.T) {
	tests := []struct {
		name    string
		auction Auction
		premium int64
		want    int64
	}{
		{
			name:    "no reserve adds premium to current price",
			auction: Auction{CurrentPrice: 10000},
			premium: 1000,
			want:    11000,
		},
		{
			name:    "unmet reserve prices at the reserve",
			auction: Auction{CurrentPrice: 10000, ReservePrice: int64Ptr(50000)},
			premium: 1000,
			want:    50000,
		},
		{
			name:    "met reserve falls back to premium pricing",
			auction: Auction{CurrentPrice: 50000, ReservePrice: int64Ptr(50000)},
			premium: 1000,
			want:    51000,
		},
		{
			name:    "price above reserve uses premium pricing",
			auction: Auction{CurrentPrice: 60000, ReservePrice: int64Ptr(50000)},
			premium: 1000,
			want:    61000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buyNowPrice(&tt.auction, tt.premium))
		})
	}
}

func TestValidateBuyNowPrice(t *testing.T) {
	tests := []struct {
		name      string
		submitted int64
		expected  int64
		auction   Auction
		wantErr   error
	}{
		{
			name:      "exact price accepted",
			submitted: 11000,
			expected:  11000,
			auction:   Auction{CurrentPrice: 10000},
			wantErr:   nil,
		},
		{
			name:      "one cent under tolerated",
			submitted: 10999,
			expected:  11000,
			auction:   Auction{CurrentPrice: 10000},
			wantErr:   nil,
		},
		{
			name:      "one cent over tolerated",
			submitted: 11001,
			expected:  11000,
			auction:   Auction{CurrentPrice: 10000},
			wantErr:   nil,
		},
		{
			name:      "two cents off rejected",
			submitted: 11002,
			expected:  11000,
			auction:   Auction{CurrentPrice: 10000},
			wantErr:   ErrBuyNowPriceMismatch,
		},
		{
			name:      "stale low price rejected",
			submitted: 9000,
			expected:  11000,
			auction:   Auction{CurrentPrice: 10000},
			wantErr:   ErrBuyNowPriceMismatch,
		},
		{
			name:      "reserve-priced buy-now satisfies the reserve",
			submitted: 50000,
			expected:  50000,
			auction:   Auction{CurrentPrice: 10000, ReservePrice: int64Ptr(50000)},
			wantErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBuyNowPrice(tt.submitted, tt.expected, &tt.auction)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
