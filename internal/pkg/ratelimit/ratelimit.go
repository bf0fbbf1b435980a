package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
)

// Limiter is a fixed-window counter per user and scope, kept in Redis.
type Limiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func New(redisClient *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{redis: redisClient, limit: limit, window: window}
}

// Allow fails open when Redis is missing or erroring.
func (l *Limiter) Allow(ctx context.Context, scope string, userID uuid.UUID) bool {
	if l == nil || l.redis == nil || l.limit <= 0 {
		return true
	}

	key := fmt.Sprintf("ratelimit:%s:%s", scope, userID)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable, allowing request")
		return true
	}
	if count == 1 {
		l.redis.Expire(ctx, key, l.window)
	}
	return count <= int64(l.limit)
}

// Middleware limits money-moving endpoints per authenticated user.
func (l *Limiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := middleware.GetUserID(r.Context())
			if userID != uuid.Nil && !l.Allow(r.Context(), scope, userID) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				response.TooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
