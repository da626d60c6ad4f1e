package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotward/auctioneer/internal/auction"
)

// Handler exposes the auction engine over HTTP
type Handler struct {
	service *auction.Service
	logger  *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(service *auction.Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

var hundred = decimal.NewFromInt(100)

// parseAmount converts a client-submitted decimal amount ("110.00") to cents
func parseAmount(raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// formatAmount renders cents as a decimal string for responses
func formatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(hundred).StringFixed(2)
}

func formatAmountPtr(cents *int64) *string {
	if cents == nil {
		return nil
	}
	s := formatAmount(*cents)
	return &s
}

type auctionResponse struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	StartingPrice string     `json:"starting_price"`
	CurrentPrice  string     `json:"current_price"`
	ReservePrice  *string    `json:"reserve_price,omitempty"`
	BidIncrement  string     `json:"bid_increment"`
	BidCount      int        `json:"bid_count"`
	EndAt         time.Time  `json:"end_at"`
	ExtendedEndAt *time.Time `json:"extended_end_at,omitempty"`
	IsActive      bool       `json:"is_active"`
	WinnerEmail   *string    `json:"winner_email,omitempty"`
}

func mapAuction(a *auction.Auction) auctionResponse {
	var winner *string
	if a.WinnerEmail != nil {
		masked := auction.MaskEmail(*a.WinnerEmail)
		winner = &masked
	}
	return auctionResponse{
		ID:            a.ID,
		Title:         a.Title,
		Status:        a.Status.String(),
		StartingPrice: formatAmount(a.StartingPrice),
		CurrentPrice:  formatAmount(a.CurrentPrice),
		ReservePrice:  formatAmountPtr(a.ReservePrice),
		BidIncrement:  formatAmount(a.BidIncrement),
		BidCount:      a.BidCount,
		EndAt:         a.EndAt,
		ExtendedEndAt: a.ExtendedEndAt,
		IsActive:      a.IsActive,
		WinnerEmail:   winner,
	}
}

// GetAuction handles GET /api/auctions/:id
func (h *Handler) GetAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid auction id"})
		return
	}

	a, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": mapAuction(a)})
}

// PlaceBid handles POST /api/auctions/:id/bids
func (h *Handler) PlaceBid(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid auction id"})
		return
	}

	var req struct {
		Amount      string `json:"amount" binding:"required"`
		BidderEmail string `json:"bidder_email" binding:"required,email"`
		BidderName  string `json:"bidder_name"`
		UserID      string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid amount"})
		return
	}

	var userID *uuid.UUID
	if req.UserID != "" {
		parsed, parseErr := uuid.Parse(req.UserID)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid user_id"})
			return
		}
		userID = &parsed
	}

	cmd := auction.PlaceBidCommand{
		AuctionID:   auctionID,
		Amount:      amount,
		BidderEmail: req.BidderEmail,
		BidderName:  req.BidderName,
		UserID:      userID,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	}

	result, err := h.service.PlaceBid(c.Request.Context(), cmd)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
		"auction":          mapAuction(result.Auction),
		"bid_id":           result.Bid.ID,
		"amount":           formatAmount(result.Bid.Amount),
		"reserve_met":      result.ReserveMet,
		"reserve_just_met": result.ReserveJustMet,
		"time_extended":    result.TimeExtended,
		"new_end_at":       result.NewEndAt,
	}})
}

// BuyNow handles POST /api/auctions/:id/buy-now
func (h *Handler) BuyNow(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid auction id"})
		return
	}

	var req struct {
		Price      string `json:"price" binding:"required"`
		BuyerEmail string `json:"buyer_email" binding:"required,email"`
		BuyerName  string `json:"buyer_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
		return
	}

	price, err := parseAmount(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid price"})
		return
	}

	result, err := h.service.BuyNow(c.Request.Context(), auction.BuyNowCommand{
		AuctionID:  auctionID,
		Price:      price,
		BuyerEmail: req.BuyerEmail,
		BuyerName:  req.BuyerName,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
		"auction":     mapAuction(result.Auction),
		"final_price": formatAmount(result.FinalPrice),
	}})
}

// RecentBids handles GET /api/auctions/:id/bids
func (h *Handler) RecentBids(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid auction id"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid limit"})
			return
		}
		limit = parsed
	}

	bids, err := h.service.RecentBids(c.Request.Context(), auctionID, limit)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": bids})
}

// Settle handles POST /internal/jobs/settle. The cron-secret middleware has
// already authorized the call.
func (h *Handler) Settle(c *gin.Context) {
	result, err := h.service.SettleExpired(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
		"processed": result.Processed,
		"sold":      result.Sold,
		"no_sale":   result.NoSale,
		"errors":    result.Errors,
	}})
}

// renderError maps domain errors onto HTTP responses. Anything unknown is an
// internal error: logged in detail, reported generically.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": err.Error()})
	case errors.Is(err, auction.ErrInvalidBidAmount),
		errors.Is(err, auction.ErrMissingBidder),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrBuyNowPriceMismatch),
		errors.Is(err, auction.ErrBuyNowBelowReserve):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
	case errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrAuctionEnded):
		c.JSON(http.StatusConflict, gin.H{"code": 409, "msg": err.Error()})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "internal error"})
	}
}
