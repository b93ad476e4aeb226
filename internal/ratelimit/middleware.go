package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/taxbridge/internal/common"
)

// SalesChannelHeader scopes limits to a storefront sales channel when present.
const SalesChannelHeader = "sw-context-token"

// NewStore returns a limiter store backed by Redis.
func NewStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "taxbridge:ratelimit"})
}

// Handler limits requests per client with a ulule limiter.
type Handler struct {
	Store  limiter.Store
	Rate   string
	Logger zerolog.Logger
}

// Middleware returns the limiting middleware. An invalid rate format is an
// error. Store failures let the request through.
func (h Handler) Middleware() (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(h.Rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", h.Rate, err)
	}
	instance := limiter.New(h.Store, rate, limiter.WithTrustForwardHeader(true))
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(func(r *http.Request) string { return clientKey(instance, r) }),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			h.Logger.Error().Err(err).Msg("ratelimit_store_failed")
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
		}),
	)
	return mw.Handler, nil
}

func clientKey(l *limiter.Limiter, r *http.Request) string {
	ip := l.GetIPKey(r)
	if token := strings.TrimSpace(r.Header.Get(SalesChannelHeader)); token != "" {
		return ip + ":" + token
	}
	return ip
}
