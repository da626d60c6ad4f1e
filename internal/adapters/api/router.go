package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// RouterConfig carries the router's middleware settings
type RouterConfig struct {
	CronSecret    string
	BidRateLimit  int
	BidRateWindow time.Duration
}

// Setup registers all HTTP routes
func Setup(r *gin.Engine, h *Handler, rdb *rd.Client, cfg RouterConfig) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	bidLimiter := RedisRateLimit(rdb, cfg.BidRateLimit, cfg.BidRateWindow)

	api := r.Group("/api")
	{
		api.GET("/auctions/:id", h.GetAuction)
		api.GET("/auctions/:id/bids", h.RecentBids)
		api.POST("/auctions/:id/bids", bidLimiter, h.PlaceBid)
		api.POST("/auctions/:id/buy-now", bidLimiter, h.BuyNow)
	}

	internal := r.Group("/internal", RequireCronSecret(cfg.CronSecret))
	{
		internal.POST("/jobs/settle", h.Settle)
	}
}
