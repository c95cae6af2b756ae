package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// NewRedisLimiter builds a limiter shared by every API replica. rateFormatted: "60-M", "1000-H".
func NewRedisLimiter(rdb *redis.Client, rateFormatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, err
	}
	store, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "qr:ratelimit", MaxRetry: 3})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// OwnerRateLimit limits requests per authenticated owner. Use after OwnerAuth.
// A store failure lets the request through.
func OwnerRateLimit(instance *limiter.Limiter, log *zap.Logger) gin.HandlerFunc {
	if instance == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		owner := c.GetString(CtxOwnerID)
		if owner == "" {
			c.Next()
			return
		}
		lc, err := instance.Increment(c.Request.Context(), "owner:"+owner, 1)
		if err != nil {
			log.Sugar().Warnw("rate limit store unavailable", "owner_id", owner, "err", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		if lc.Reset > 0 {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))
		}
		if lc.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, serializer.Err(http.StatusTooManyRequests, "rate limit exceeded", nil))
			return
		}
		c.Next()
	}
}
