package webui

import (
	"context"
	"sync"
	"time"
)

// attemptRecord counts failed attempts inside a window.
type attemptRecord struct {
	Count   int
	ResetAt time.Time
}

func (a attemptRecord) expired(now time.Time) bool {
	return !now.Before(a.ResetAt)
}

// RateLimiter blocks clients that fail token authentication too often.
//
// The limiter uses a fixed window per IP:
//   - Each failed attempt increments the counter
//   - After maxAttempts, the IP is blocked for the block duration
//   - A successful request resets the counter
//   - Expired entries are periodically cleaned up
type RateLimiter struct {
	mu          sync.RWMutex
	attempts    map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a RateLimiter. maxAttempts of 0 disables
// blocking.
func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
	}
}

// Allow reports whether ip may attempt authentication, and how long it
// remains blocked when not.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	if r.maxAttempts <= 0 {
		return true, 0
	}

	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	now := r.now()
	if !exists || record.expired(now) {
		return true, 0
	}
	if record.Count >= r.maxAttempts {
		return false, record.ResetAt.Sub(now)
	}
	return true, 0
}

// RecordAttempt records a failed authentication attempt for ip. Reaching
// the limit extends the window to the block duration.
func (r *RateLimiter) RecordAttempt(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	record, exists := r.attempts[ip]
	if !exists || record.expired(now) {
		record = attemptRecord{ResetAt: now.Add(r.window)}
	}
	record.Count++
	if record.Count == r.maxAttempts {
		record.ResetAt = now.Add(r.block)
	}
	r.attempts[ip] = record
}

// Reset clears the record for ip.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.attempts, ip)
	r.mu.Unlock()
}

// Cleanup removes expired records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for ip, record := range r.attempts {
		if record.expired(now) {
			delete(r.attempts, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker calls Cleanup every interval until ctx is cancelled.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Count returns the number of tracked IPs.
func (r *RateLimiter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}
