package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"payreport/internal/transport/http/api"
)

// pruneThreshold is the number of tracked callers above which expired windows
// are swept on the next request.
const pruneThreshold = 1024

type window struct {
	count int
	reset time.Time
}

type decision struct {
	allowed   bool
	remaining int
	resetIn   time.Duration
}

// fixedWindow counts requests per caller key in windows of a fixed length.
type fixedWindow struct {
	mu      sync.Mutex
	limit   int
	length  time.Duration
	windows map[string]*window
}

func newFixedWindow(limit int, length time.Duration) *fixedWindow {
	return &fixedWindow{limit: limit, length: length, windows: map[string]*window{}}
}

func (fw *fixedWindow) take(key string, now time.Time) decision {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if len(fw.windows) > pruneThreshold {
		for k, w := range fw.windows {
			if now.After(w.reset) {
				delete(fw.windows, k)
			}
		}
	}

	w, ok := fw.windows[key]
	if !ok || now.After(w.reset) {
		w = &window{reset: now.Add(fw.length)}
		fw.windows[key] = w
	}
	w.count++
	return decision{
		allowed:   w.count <= fw.limit,
		remaining: max(fw.limit-w.count, 0),
		resetIn:   w.reset.Sub(now),
	}
}

// admit records the request against the caller's window, sets the rate limit
// headers and writes a 429 when the window is exhausted. A non-positive limit
// disables the check.
func (fw *fixedWindow) admit(w http.ResponseWriter, r *http.Request) bool {
	if fw.limit <= 0 {
		return true
	}
	key := callerKey(r)
	d := fw.take(key, time.Now())
	resetSec := ceilSeconds(d.resetIn)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(fw.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
	if d.allowed {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(resetSec, 1)))
	slog.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path, "limit", fw.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// RateLimit allows limit requests per caller in each window.
func RateLimit(limit int, length time.Duration) func(http.Handler) http.Handler {
	fw := newFixedWindow(limit, length)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fw.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// ExpensiveRouteRateLimit applies a tighter per-caller budget to routes that
// rebuild the annual aggregate or render an export. Other routes pass through.
func ExpensiveRouteRateLimit(baseLimit int, length time.Duration) func(http.Handler) http.Handler {
	exports := newFixedWindow(max(baseLimit/4, 1), length)
	rebuilds := newFixedWindow(max(baseLimit/2, 1), length)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var fw *fixedWindow
			switch path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1"), "/"); {
			case r.Method == http.MethodPost && path == "/reports/export":
				fw = exports
			case r.Method == http.MethodGet && strings.HasPrefix(path, "/reports/annual/") && !strings.HasSuffix(path, "/current"):
				fw = rebuilds
			}
			if fw != nil && !fw.admit(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callerKey identifies the caller by user id, falling back to the client IP
// for anonymous requests.
func callerKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "ip:" + ip
		}
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return "ip:" + host
	}
	return "ip:" + remote
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
