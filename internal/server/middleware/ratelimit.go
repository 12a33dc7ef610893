package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/groupgate/groupgate/internal/metrics"
	"github.com/groupgate/groupgate/internal/model"
	"github.com/groupgate/groupgate/internal/ratelimit"
)

// PublicRateLimit limits the unauthenticated verification endpoint per
// source IP at a fixed requests-per-minute ceiling, independent of the
// per-key limits on the redemption path.
func PublicRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	// RealIP middleware runs earlier in the chain, so keying by the request
	// IP honors X-Forwarded-For.
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimitedTotal.WithLabelValues("verify").Inc()
			WriteRateLimited(w, r)
		}),
	)
}

// SetRateLimitHeaders writes the standard X-RateLimit-* headers for a
// limiter decision, plus Retry-After when the request was denied.
func SetRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(d.ResetAt).Seconds())+1))
	}
}

// WriteRateLimited writes the 429 error envelope.
func WriteRateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    http.StatusTooManyRequests,
			Message: "Rate limit exceeded, retry later",
		},
		RequestID: GetRequestID(r.Context()),
	})
}
