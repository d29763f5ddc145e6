package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"
	"github.com/sepetli/kimlik/config"
	"go.uber.org/zap"
)

// clientAddress strips the ephemeral port from RemoteAddr so direct
// clients are counted per host, RealIP already resolved proxy headers
// into a bare address
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimitedResponse struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

func (*rateLimitedResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

// rateLimiter counts requests per client address in redis, with a nil
// client or an unreachable redis the limiter fails open and lets the
// request through
func rateLimiter(
	log *zap.Logger,
	rdb *redis.Client,
	route string,
	limit config.RouteLimit,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rdb == nil || limit.Requests <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := "rate_limit:" + route + ":" + clientAddress(r)

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				log.Warn("rate limiter degraded, failing open",
					zap.String("route", route),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, limit.Window)
			}
			if count > int64(limit.Requests) {
				ttl, _ := rdb.TTL(ctx, key).Result()
				retry := int(ttl.Seconds())
				if retry < 1 {
					retry = int(limit.Window.Seconds())
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				render.Status(r, http.StatusTooManyRequests)
				render.Respond(w, r, &rateLimitedResponse{
					Message:    "Çok fazla istek gönderdiniz. Lütfen daha sonra tekrar deneyin.",
					RetryAfter: retry,
				})
				return
			}
			ttl, _ := rdb.TTL(ctx, key).Result()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit.Requests-int(count)))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))
			next.ServeHTTP(w, r)
		})
	}
}
