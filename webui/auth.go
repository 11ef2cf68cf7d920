package webui

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"medextract/logging"
)

// Defaults for failed-token rate limiting.
const (
	DefaultAuthAttempts = 5
	DefaultAuthWindow   = time.Minute
	DefaultAuthBlock    = 5 * time.Minute
)

// TokenAuth protects handlers with a bearer token checked against a bcrypt
// hash. Repeated failures from one IP are rate limited.
type TokenAuth struct {
	hash    []byte
	limiter *RateLimiter
	logger  *logging.Logger
}

// NewTokenAuth validates hash and returns the middleware.
func NewTokenAuth(hash string, logger *logging.Logger) (*TokenAuth, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid upload token hash: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TokenAuth{
		hash:    []byte(hash),
		limiter: NewRateLimiter(DefaultAuthAttempts, DefaultAuthWindow, DefaultAuthBlock),
		logger:  logger.Named("auth"),
	}, nil
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(b), nil
}

// Limiter exposes the failed-attempt limiter so callers can run its
// cleanup ticker.
func (a *TokenAuth) Limiter() *RateLimiter {
	return a.limiter
}

// Middleware rejects requests without a valid bearer token.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if ok, wait := a.limiter.Allow(ip); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, errorRateLimited,
				"Too many failed authentication attempts. Please try again later.", true)
			return
		}

		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || token == "" || bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
			a.limiter.RecordAttempt(ip)
			a.logger.Warn("Rejected upload token", zap.String("remote_addr", ip))
			writeError(w, http.StatusUnauthorized, errorUnauthorized, "A valid upload token is required.", false)
			return
		}

		a.limiter.Reset(ip)
		next.ServeHTTP(w, r)
	})
}
