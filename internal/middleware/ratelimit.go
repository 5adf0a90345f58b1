package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultAttemptLimit is how many sign-in or sign-up attempts one
	// address may make for one email per window.
	DefaultAttemptLimit  = 10
	DefaultAttemptWindow = time.Minute

	// ipLimitFactor scales the per-email limit into the ceiling for a single
	// client address across all emails.
	ipLimitFactor = 5

	maxPeekBytes = 64 << 10
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter counts auth attempts in fixed windows. Household members
// often share one address, so attempts are counted per address and email,
// with a looser ceiling per address.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}
	if window <= 0 {
		window = DefaultAttemptWindow
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// take counts one attempt against key and reports whether it is within
// limit, and if not, how long until the window resets.
func (rl *RateLimiter) take(key string, limit int) (bool, time.Duration) {
	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rl.window)}
		return true, 0
	}
	b.count++
	if b.count > limit {
		return false, b.resetAt.Sub(now)
	}
	return true, 0
}

// Attempt records one attempt from ip for email on route. It returns false
// and the wait when either the per-email or the per-address limit is spent.
func (rl *RateLimiter) Attempt(route, ip, email string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	okIP, waitIP := rl.take(route+"|"+ip, rl.limit*ipLimitFactor)
	okEmail, waitEmail := rl.take(route+"|"+ip+"|"+email, rl.limit)
	if !okIP {
		return false, waitIP
	}
	if !okEmail {
		return false, waitEmail
	}
	return true, 0
}

// Cleanup removes buckets whose window has passed.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
}

// attemptEmail reads the lowercased email from a JSON body and puts the body
// back for the next handler.
func attemptEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

// LimitAuthAttempts rejects login and register requests over the limiter's
// budget with 429 and a Retry-After header.
func LimitAuthAttempts(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Attempt(r.URL.Path, RealIP(r), attemptEmail(r))
			if !ok {
				secs := int((wait + time.Second - 1) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many attempts, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
