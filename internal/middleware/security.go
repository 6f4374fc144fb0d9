package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldstone/opportunity-engine/internal/logger"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

// maxBodyBytes caps request bodies; enrollment targets and tier schedules are
// small, so anything near this limit is not a legitimate client.
const maxBodyBytes = 10 << 20

// apiCSP locks every content source down. The server only ever returns JSON,
// so nothing may load scripts, styles, or frames from a response.
const apiCSP = "default-src 'none'; script-src 'none'; style-src 'none'; " +
	"img-src 'none'; connect-src 'self'; font-src 'none'; object-src 'none'; " +
	"media-src 'none'; frame-src 'none'; base-uri 'none'; form-action 'none'"

// SecurityHeadersMiddleware sets the hardening headers on every response.
// Scoring and rev-share figures are tenant data, so caching is disabled
// outright rather than per-route.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", apiCSP)

		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")

		// Blank the server identity header.
		c.Header("Server", "")

		c.Next()
	}
}

// devOrigins are the local frontend origins accepted when running in
// development. Production origins come from config only.
var devOrigins = map[string]bool{
	"http://localhost:3000": true,
	"http://localhost:3001": true,
	"http://localhost:8080": true,
	"http://127.0.0.1:3000": true,
	"http://127.0.0.1:3001": true,
	"http://127.0.0.1:8080": true,
}

// CORSMiddleware echoes the Origin header back only when it is on the allow
// list and answers preflight requests directly.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		if cfg.IsDevelopment() {
			allowed = devOrigins[origin]
		} else {
			for _, o := range cfg.GetAllowedOrigins() {
				if origin == o {
					allowed = true
					break
				}
			}
		}
		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

var allowedContentTypes = []string{
	"application/json",
	"multipart/form-data",
	"application/x-www-form-urlencoded",
}

// scannerAgents are user-agent fragments from common attack tooling. Matching
// requests are refused before they reach a handler.
var scannerAgents = []string{
	"sqlmap",
	"nikto",
	"nmap",
	"masscan",
	"<script",
	"javascript:",
}

// InputValidationMiddleware rejects malformed or hostile requests early: an
// oversized body, a write without a usable Content-Type, a missing User-Agent,
// or a known scanner signature.
func InputValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
			contentType := c.GetHeader("Content-Type")
			if contentType == "" {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "Content-Type header is required",
				})
				return
			}
			if !acceptableContentType(contentType) {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error":         "Unsupported content type",
					"allowed_types": allowedContentTypes,
				})
				return
			}
		}

		userAgent := c.GetHeader("User-Agent")
		if userAgent == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "User-Agent header is required",
			})
			return
		}
		if scannerAgent(userAgent) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Request blocked for security reasons",
			})
			return
		}

		c.Next()
	}
}

func acceptableContentType(contentType string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func scannerAgent(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, fragment := range scannerAgents {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// rateWindow is a sliding one-minute window of request times for one client.
type rateWindow struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	limit   int
	span    time.Duration
}

func (w *rateWindow) allow(clientIP string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	recent := w.clients[clientIP][:0]
	for _, t := range w.clients[clientIP] {
		if now.Sub(t) <= w.span {
			recent = append(recent, t)
		}
	}
	if len(recent) >= w.limit {
		w.clients[clientIP] = recent
		return false
	}
	w.clients[clientIP] = append(recent, now)
	return true
}

// RateLimitingMiddleware enforces a per-IP request budget with an in-process
// sliding window. Gate endpoints sit behind it; a multi-instance deployment
// would move the window into Redis.
func RateLimitingMiddleware() gin.HandlerFunc {
	window := &rateWindow{
		clients: make(map[string][]time.Time),
		limit:   100,
		span:    time.Minute,
	}

	return func(c *gin.Context) {
		if !window.allow(c.ClientIP(), time.Now()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": "60",
			})
			return
		}
		c.Next()
	}
}

// LoggingMiddleware records one line per request with the fields an incident
// review needs, and a warning for every 4xx/5xx outcome.
func LoggingMiddleware() gin.HandlerFunc {
	log := logger.NewSimpleLogger()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		log.Info("request",
			"status", status,
			"latency", time.Since(start).String(),
			"client", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"user_agent", c.Request.UserAgent(),
		)
		if status >= http.StatusBadRequest {
			log.Warn("request rejected",
				"status", status,
				"method", c.Request.Method,
				"path", path,
				"client", c.ClientIP(),
			)
		}
	}
}
