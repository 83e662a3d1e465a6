package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// backendTimeout bounds the Redis round trip; past it the caller fails
// open rather than blocking the request.
const backendTimeout = 500 * time.Millisecond

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrRedisUnavailable  = errors.New("redis unavailable")
)

type Scope string

const (
	// ScopeProxyIP limits the master's node-reverse-proxy endpoint per
	// caller IP.
	ScopeProxyIP Scope = "proxy_ip"
	// ScopeRecording limits the recording-toggle endpoint per (node, camera).
	ScopeRecording Scope = "recording"
)

type Decision struct {
	Scope      Scope
	Limit      int
	Remaining  int
	Reset      time.Time // When the window resets
	RetryAfter int       // Seconds
	Allowed    bool
}

type LimitConfig struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
	Burst  int           `yaml:"burst"`
}

type Limiter struct {
	client *redis.Client
	salt   string // For IP hashing stability
}

func NewLimiter(client *redis.Client, salt string) *Limiter {
	if salt == "" {
		salt = "default-salt-change-me"
	}
	return &Limiter{client: client, salt: salt}
}

// HashIP creates a privacy-safe hash of the IP
func (l *Limiter) HashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip + l.salt))
	return hex.EncodeToString(hash[:])
}

// CheckRateLimit checks if the request is allowed. It counts requests in a
// fixed window that opens at the key's first request and lasts
// config.Window; it is not a sliding window.
func (l *Limiter) CheckRateLimit(ctx context.Context, key string, config LimitConfig) (*Decision, error) {
	// Lua script to atomically INCR the key and set its expiry if new.
	// The key is used as given, without a prefix.
	script := redis.NewScript(`
		local current = redis.call("INCR", KEYS[1])
		if tonumber(current) == 1 then
			redis.call("PEXPIRE", KEYS[1], ARGV[1])
		end
		return current
	`)

	// The window resets exactly Window after the key's first request.

	count, err := script.Run(ctx, l.client, []string{key}, config.Window.Milliseconds()).Int()

	if err != nil {
		// Redis Failure
		return nil, ErrRedisUnavailable
	}

	remaining := config.Rate - count
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= config.Rate

	// Reset and RetryAfter are upper-bound estimates (now + Window); the
	// key's actual TTL is not fetched.

	return &Decision{
		Limit:      config.Rate,
		Remaining:  remaining,
		Reset:      time.Now().Add(config.Window), // Approximation
		RetryAfter: int(config.Window.Seconds()),  // Approximation
		Allowed:    allowed,
	}, nil
}

// Allow wraps CheckRateLimit with the bounded backend timeout and the
// fail-open policy this being a non-auth, operator-trusted control plane
// calls for: a Redis failure (timeout or error) never blocks the request.
func (l *Limiter) Allow(ctx context.Context, scope Scope, key string, config LimitConfig) bool {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	decision, err := l.CheckRateLimit(ctx, string(scope)+":"+key, config)
	if err != nil {
		log.Printf("ratelimit: backend unavailable for scope %s, failing open: %v", scope, err)
		return true
	}
	return decision.Allowed
}
