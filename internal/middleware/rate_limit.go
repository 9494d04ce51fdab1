package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const writeRateLimitPrefix = "rl:write:"

// WriteRateLimit caps state-changing requests per client IP in fixed one
// minute windows. Without Redis, or with a non-positive limit, it is a no-op;
// cache errors fail open.
func WriteRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 || isSafeMethod(c.Method()) {
			return c.Next()
		}

		now := time.Now()
		window := now.Unix() / 60
		key := writeRateLimitPrefix + c.IP() + ":" + strconv.FormatInt(window, 10)

		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			retry := 60 - now.Unix()%60
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retry, 10))
			return fiber.NewError(http.StatusTooManyRequests, "too many write requests, try again later")
		}
		return c.Next()
	}
}
