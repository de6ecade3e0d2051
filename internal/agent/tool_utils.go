package agent

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	FAQSearchRateLimit  = 10
	FAQSearchRateWindow = time.Minute
	FAQSearchMaxResults = 3
	CatalogHTTPTimeout  = 10 * time.Second
	CatalogMaxResults   = 5
	CatalogMaxBodySize  = 256 * 1024
)

type toolSessionContextKey struct{}

type toolRateLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	hits   map[string][]time.Time
}

func newToolRateLimiter(limit int, window time.Duration) *toolRateLimiter {
	return &toolRateLimiter{limit: limit, window: window, hits: make(map[string][]time.Time)}
}

func (l *toolRateLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.hits[key]
	cutoff := now.Add(-l.window)
	idx := 0
	for _, t := range queue {
		if t.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		queue = queue[idx:]
	}
	if len(queue) >= l.limit {
		l.hits[key] = queue
		return false
	}
	queue = append(queue, now)
	l.hits[key] = queue
	return true
}

// WithToolSession tags the context with the session id so tool rate limits
// apply per conversation rather than globally.
func WithToolSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, toolSessionContextKey{}, sessionID)
}

// ToolSessionFromContext retrieves the session id placed by WithToolSession.
func ToolSessionFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(toolSessionContextKey{})
	if val == nil {
		return "", false
	}
	sessionID, ok := val.(string)
	return sessionID, ok && sessionID != ""
}

func limiterKeyFromContext(ctx context.Context) string {
	if sessionID, ok := ToolSessionFromContext(ctx); ok {
		return fmt.Sprintf("session:%s", sessionID)
	}
	return "session:unscoped"
}

func readBounded(r io.Reader, max int64) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r, max))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
