package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"sigauth/internal/common/logging"
	"sigauth/internal/ratelimit"
)

// RateLimitMessage is returned to a throttled client.
const RateLimitMessage = "rate limit exceeded"

// RateLimit throttles requests per client IP before any signature work is
// done. A nil or disabled limiter passes everything through.
func RateLimit(limiter *ratelimit.Limiter, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return func(next http.Handler) http.Handler {
		if !limiter.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			if limiter.Allow(client) {
				next.ServeHTTP(w, r)
				return
			}

			logger.WithContext(r.Context()).Warn("Request throttled",
				logging.String("client", client),
				logging.String("path", r.URL.Path),
			)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(limiter.RetryAfter().Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": RateLimitMessage})
		})
	}
}

// clientIP is the host part of RemoteAddr. Forwarding headers are not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
