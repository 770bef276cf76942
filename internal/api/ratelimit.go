package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"jobhill/internal/auth"

	"golang.org/x/time/rate"
)

// UserLimiter 按用户（匿名时按客户端 IP）限流写请求。
type UserLimiter struct {
	mu   sync.Mutex
	m    map[string]*limiterEntry
	r    rate.Limit
	b    int
	idle time.Duration
	now  func() time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewUserLimiter 创建限流器，reqPerSec<=0 时不限流。
func NewUserLimiter(reqPerSec float64, burst int) *UserLimiter {
	limit := rate.Inf
	if reqPerSec > 0 {
		limit = rate.Limit(reqPerSec)
	}
	if burst <= 0 {
		burst = 1
	}
	return &UserLimiter{
		m:    make(map[string]*limiterEntry),
		r:    limit,
		b:    burst,
		idle: 10 * time.Minute,
		now:  time.Now,
	}
}

// Allow 判断 key 当前是否可以通过，并顺带清理长时间未出现的 key。
func (l *UserLimiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	e, ok := l.m[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.r, l.b)}
		l.m[key] = e
	}
	e.seen = now
	if len(l.m) > 1024 {
		for k, v := range l.m {
			if now.Sub(v.seen) > l.idle {
				delete(l.m, k)
			}
		}
	}
	l.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// wrap 对 POST/PATCH/PUT/DELETE 请求限流，GET 不受影响。
func (l *UserLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		if !l.Allow(limitKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeErrorCode(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next(w, r)
	}
}

func limitKey(r *http.Request) string {
	if v := auth.ViewerFrom(r.Context()); !v.IsAnonymous() {
		return "user:" + v.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
