// Package api provides the HTTP server for the COSTAR generation service.
package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/costargen/costargen/internal/config"
)

const (
	ctxSubjectKey   = "subject"
	ctxPlanKey      = "plan"
	ctxAnonymousKey = "anonymous"
	ctxAdminKey     = "admin"
)

// corsMiddleware adds CORS headers to every response, allowing
// cross-origin requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// limiterIdleAfter is how long a client limiter may sit unused before
// the sweep drops it. Keeps the map bounded against fingerprint churn.
const limiterIdleAfter = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// clientLimiters is a per-fingerprint token bucket map that evicts idle
// entries so scanning fresh IP/UA pairs cannot grow it without bound.
type clientLimiters struct {
	rps   float64
	burst int

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	return &clientLimiters{
		rps:       rps,
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

func (l *clientLimiters) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleAfter {
		for k, cl := range l.clients {
			if now.Sub(cl.lastSeen) > limiterIdleAfter {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.lim
}

func (l *clientLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// rateLimitMiddleware applies a per-client token bucket. Clients are
// keyed the same way quota subjects are, so one abusive caller cannot
// starve the rest.
func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(rps, burst)

	return func(c *gin.Context) {
		if !limiters.get(clientFingerprint(c), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}

// authMiddleware resolves the caller into a quota subject. A configured
// bearer key maps to its subject and plan; everything else is treated as
// an anonymous caller keyed by a client fingerprint.
func authMiddleware(keys []config.APIKey) gin.HandlerFunc {
	bySecret := make(map[string]config.APIKey, len(keys))
	for _, k := range keys {
		bySecret[k.Key] = k
	}

	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if key, ok := bySecret[token]; ok {
				c.Set(ctxSubjectKey, key.Subject)
				c.Set(ctxPlanKey, key.Plan)
				c.Set(ctxAnonymousKey, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Set(ctxSubjectKey, "anon:"+clientFingerprint(c))
		c.Set(ctxPlanKey, string(config.PlanFree))
		c.Set(ctxAnonymousKey, true)
		c.Next()
	}
}

// adminMiddleware gates the admin endpoints behind a separate key list.
func adminMiddleware(adminKeys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(adminKeys))
	for _, k := range adminKeys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if _, ok := allowed[token]; !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			return
		}
		c.Set(ctxAdminKey, true)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	// Some clients send the key via a plain header instead.
	return strings.TrimSpace(c.GetHeader("X-Api-Key"))
}

// clientFingerprint derives a stable anonymous identity from the client
// address and user agent. Hashed so raw addresses never reach storage.
func clientFingerprint(c *gin.Context) string {
	sum := sha256.Sum256([]byte(c.ClientIP() + "|" + c.Request.UserAgent()))
	return hex.EncodeToString(sum[:16])
}
