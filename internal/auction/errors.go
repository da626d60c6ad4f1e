package auction

import "fmt"

// Domain errors surfaced to callers. Anything else that escapes the service
// is an internal error and is reported generically.
var (
	ErrAuctionNotFound     = fmt.Errorf("auction not found")
	ErrAuctionNotActive    = fmt.Errorf("auction is not active")
	ErrAuctionEnded        = fmt.Errorf("auction has ended")
	ErrBidTooLow           = fmt.Errorf("bid amount is below the minimum bid")
	ErrInvalidBidAmount    = fmt.Errorf("bid amount must be positive")
	ErrMissingBidder       = fmt.Errorf("bidder email is required")
	ErrBuyNowPriceMismatch = fmt.Errorf("submitted price does not match the buy-now price")
	ErrBuyNowBelowReserve  = fmt.Errorf("buy-now price does not satisfy the reserve price")
)
