package api

import (
    "net"
    "net/http"
    "sync"

    "golang.org/x/time/rate"
)

// RateLimiter enforces a per-client-IP token bucket across all routes.
type RateLimiter struct {
    mu    sync.Mutex
    perIP map[string]*rate.Limiter
    limit rate.Limit
    burst int
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
    if perSecond <= 0 { perSecond = 50 }
    if burst <= 0 { burst = 100 }
    return &RateLimiter{perIP: map[string]*rate.Limiter{}, limit: rate.Limit(perSecond), burst: burst}
}

func (l *RateLimiter) limiterFor(ip string) *rate.Limiter {
    l.mu.Lock(); defer l.mu.Unlock()
    lim := l.perIP[ip]
    if lim == nil {
        lim = rate.NewLimiter(l.limit, l.burst)
        l.perIP[ip] = lim
    }
    return lim
}

// Middleware rejects requests over the per-IP budget with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ip := clientIP(r)
        if !l.limiterFor(ip).Allow() {
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}

func clientIP(r *http.Request) string {
    if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
        // first hop
        for i := 0; i < len(fwd); i++ {
            if fwd[i] == ',' { return fwd[:i] }
        }
        return fwd
    }
    host, _, err := net.SplitHostPort(r.RemoteAddr)
    if err != nil { return r.RemoteAddr }
    return host
}
