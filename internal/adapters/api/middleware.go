package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit implements a sliding-window counter atomically in Redis.
// KEYS[1] = limiter key; ARGV = now, window start, window seconds, member,
// limit. Returns the in-window count, or -1 when the limit is hit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits bid submissions per bidder. Keys live in Redis with a
// TTL so the limit holds across processes; the limiter fails open when Redis
// is unavailable.
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Key by bidder email from the body, falling back to client IP
		email := extractBidderEmail(c)

		var key string
		if email != "" {
			key = fmt.Sprintf("rate_limit:bids:email:%s", email)
		} else {
			key = fmt.Sprintf("rate_limit:bids:ip:%s", c.ClientIP())
		}

		now := time.Now().Unix()
		windowSec := int64(window.Seconds())
		windowStart := now - windowSec
		member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now, windowStart, windowSec, member, limit).Int()
		if err != nil {
			// Fail open on Redis errors
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": 429,
				"msg":  "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}

// extractBidderEmail reads bidder_email/buyer_email from the body without
// consuming it
func extractBidderEmail(c *gin.Context) string {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	// Reset the body so the handler can bind it
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var req struct {
		BidderEmail string `json:"bidder_email"`
		BuyerEmail  string `json:"buyer_email"`
	}
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return ""
	}
	if req.BidderEmail != "" {
		return req.BidderEmail
	}
	return req.BuyerEmail
}

// RequireCronSecret guards the settlement trigger with a shared secret
func RequireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Cron-Secret") != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": 401,
				"msg":  "invalid cron secret",
			})
			return
		}
		c.Next()
	}
}
