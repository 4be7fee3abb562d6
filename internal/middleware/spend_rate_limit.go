package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// SpendRateLimit caps gift and call requests per actor per minute. With Redis
// the window is shared across instances; without it each process keeps its
// own token buckets.
func SpendRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	local := newLocalLimiter(maxPerMin)
	return func(c *fiber.Ctx) error {
		actor, _ := c.Locals(LocalActorID).(string)
		if actor == "" {
			actor = c.IP()
		}
		if cache == nil {
			if !local.allow(actor) {
				return tooManySpends()
			}
			return c.Next()
		}

		key := "rl:spend:" + actor
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			// fail over to the in-process limiter on cache errors
			if !local.allow(actor) {
				return tooManySpends()
			}
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return tooManySpends()
		}
		return c.Next()
	}
}

func tooManySpends() error {
	return fiber.NewError(http.StatusTooManyRequests, "too many spend requests, try again later")
}

type localLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, limiters: make(map[string]*rate.Limiter)}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
