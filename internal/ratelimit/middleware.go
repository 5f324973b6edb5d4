// internal/ratelimit/middleware.go
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
)

// KeyFunc extracts the client key from a request
type KeyFunc func(r *http.Request) string

// RemoteAddrKey keys clients by IP, falling back to the raw address
// when it has no port
func RemoteAddrKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the limiter per client and stamps X-RateLimit
// headers on every response. Rejected requests get a 429 with
// Retry-After.
func (cl *ClientLimiter) Middleware(keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = RemoteAddrKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			allowed := cl.Allow(key)
			setHeaders(w, cl.Info(key))

			if !allowed {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded","retry_after":1}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(w http.ResponseWriter, info Info) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.Reset, 10))
}
