package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"dealhub/internal/config"
	"dealhub/internal/logger"
	"dealhub/internal/redis"
)

// RateDecision — результат проверки лимита для одного запроса.
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter ограничивает число запросов с одного IP в фиксированном окне.
// Основной защищаемый рубеж — проверка и погашение купонов: без лимита код
// формата PREFIX-XXXXXX можно перебирать.
type RateLimiter struct {
	redis   *redis.Client
	log     *logger.Logger
	enabled bool
	limit   int64
	window  time.Duration
	prefix  string
}

// NewRateLimiter создаёт rate limiter. При выключенной конфигурации или
// отсутствии Redis все запросы разрешены.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RateLimiter{
		redis:   redisClient,
		log:     log,
		enabled: true,
		limit:   int64(cfg.Requests),
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
	}
}

// Allow учитывает запрос и решает, пропускать ли его.
func (r *RateLimiter) Allow(ctx context.Context, clientIP string) (*RateDecision, error) {
	if !r.enabled {
		return &RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	key := r.makeKey(clientIP)

	count, err := r.redis.Incr(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	// TTL выставляется первым запросом окна.
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Failed to set rate limit ttl")
		}
	}

	ttl, err := r.redis.TTL(ctx, key)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("Failed to get rate limit ttl")
		ttl = r.window
	}

	return &RateDecision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: clampRemaining(r.limit - count),
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// Usage возвращает состояние текущего окна, не учитывая запрос.
func (r *RateLimiter) Usage(ctx context.Context, clientIP string) (*RateDecision, error) {
	if !r.enabled {
		return &RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	key := r.makeKey(clientIP)

	count, err := r.redis.GetInt(ctx, key)
	if err != nil {
		// Ключа ещё нет: окно пустое.
		return &RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	decision := &RateDecision{
		Allowed:   count < r.limit,
		Limit:     r.limit,
		Remaining: clampRemaining(r.limit - count),
	}

	if ttl, err := r.redis.TTL(ctx, key); err == nil {
		decision.ResetAt = time.Now().Add(ttl)
	} else {
		r.log.WithError(err).WithField("key", key).Warn("Failed to get rate limit ttl")
	}

	return decision, nil
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

func (r *RateLimiter) makeKey(clientIP string) string {
	return redis.GenerateKey(r.prefix, strings.ReplaceAll(clientIP, ":", "_"))
}

func clampRemaining(remaining int64) int64 {
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExtractClientIP получает IP клиента из заголовков прокси или RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
