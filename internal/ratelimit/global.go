package ratelimit

import (
	"fmt"
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/scentmarket/internal/common"
)

// NewGlobal builds the API-wide fixed-window limiter keyed by client IP.
// rate uses the "<limit>-<period>" format, e.g. "300-M".
func NewGlobal(client *redis.Client, rate string) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", rate, err)
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "ratelimit:api"})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	mw := stdlib.NewMiddleware(limiter.New(store, parsed),
		stdlib.WithKeyGetter(common.ClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rate limiter unavailable", nil)
		}),
	)
	return mw.Handler, nil
}
