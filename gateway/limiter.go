package gateway

import (
	"sync"
	"time"
)

// RateLimiter 控制 REST 请求速率，避免触发交易所限流（-1003）。
type RateLimiter interface {
	Wait()
}

// TokenBucketLimiter 是一个简单的令牌桶实现。
type TokenBucketLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait 消耗一个令牌，不足时阻塞到补满为止。
func (l *TokenBucketLimiter) Wait() {
	l.mu.Lock()
	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	if l.tokens >= 1 {
		l.tokens--
		l.mu.Unlock()
		return
	}
	wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	l.tokens = 0
	l.mu.Unlock()
	time.Sleep(wait)
}
