package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateStore counts hits for key within the current window and reports
// whether the caller is still under limit.
type RateStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const TooManyRequestsMessage = "Too many requests. Please try again later."

type RateLimiter struct {
	store  RateStore
	limit  int
	window time.Duration
}

// NewRateLimiter limits each client to limit requests per window. A limit of
// zero disables limiting.
func NewRateLimiter(store RateStore, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, limit: limit, window: window}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r.Context(), ClientKey(r)) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, TooManyRequestsMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow counts one hit for key. It reports true when limiting is disabled or
// the store is unavailable: a broken limiter must not take the relay down.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	allowed, err := rl.store.Allow(ctx, key, rl.limit, rl.window)
	if err != nil {
		slog.WarnContext(ctx, "rate limiter unavailable", "error", err)
		return true
	}
	return allowed
}

// ClientKey prefers the authenticated subject, then the client IP.
func ClientKey(r *http.Request) string {
	if sub := GetSubject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type visitor struct {
	count       int
	windowStart time.Time
}

// MemoryStore keeps fixed-window counters in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryStore starts a cleanup goroutine evicting idle visitors every
// window. Call Close to stop it.
func NewMemoryStore(window time.Duration) *MemoryStore {
	s := &MemoryStore{
		visitors: make(map[string]*visitor),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.evict(window)
			}
		}
	}()

	return s
}

func (s *MemoryStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, exists := s.visitors[key]
	if !exists || now.Sub(v.windowStart) >= window {
		s.visitors[key] = &visitor{count: 1, windowStart: now}
		return true, nil
	}

	v.count++
	return v.count <= limit, nil
}

func (s *MemoryStore) evict(window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, v := range s.visitors {
		if now.Sub(v.windowStart) >= window {
			delete(s.visitors, key)
		}
	}
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// RedisStore shares fixed-window counters across instances via INCR/EXPIRE.
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := windowKey(key, s.now(), window)

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}

func windowKey(key string, now time.Time, window time.Duration) string {
	bucket := now.UnixNano() / int64(window)
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}
