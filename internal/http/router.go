// Package httpapi wires the ops HTTP server: health, Prometheus metrics and
// the admin API over chat settings and game state. Cross-cutting concerns
// (tracing, correlation ids, masked request logs, panic recovery, metrics,
// compression, CORS, security headers and rate limiting) are installed here
// in a fixed order.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-modbot/internal/config"
	"github.com/tbourn/go-modbot/internal/http/handlers"
	"github.com/tbourn/go-modbot/internal/http/middleware"
)

// APIBasePath is where the admin API is mounted.
const APIBasePath = "/api/v1"

// RegisterRoutes attaches middleware and endpoints to r and returns a
// function releasing the rate limiter's background sweep.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger (credential headers masked)
//  4. Recovery
//  5. Body size limit
//  6. Metrics (excluding /metrics)
//  7. gzip (excluding /metrics)
//  8. CORS and security headers
//
// The API group additionally runs AdminToken, the per-client rate limiter
// and no-store caching headers.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) (closeFn func()) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.LogOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(64 << 10))
	r.Use(middleware.Metrics("/metrics"))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.Ops.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Ops.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Ops.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.Ops.RateRPS, cfg.Ops.RateBurst, middleware.KeyByAdminOrIP())

	api := r.Group(APIBasePath,
		middleware.AdminToken(cfg.Ops.AdminToken),
		rl.Handler(),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		api.GET("/chats/:id/settings", h.GetSettings)
		api.PUT("/chats/:id/settings", h.UpdateSettings)
		api.GET("/chats/:id/crocodile", h.GetCrocodile)
		api.GET("/rolls/:id", h.GetRoll)
		api.GET("/stats", h.GetStats)
	}
	return rl.Close
}

// corsMiddleware builds the CORS posture. With no configured origins every
// origin is allowed without credentials; otherwise allowed origins are
// echoed back.
func corsMiddleware(cfg config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderAdminToken},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		// ACAO is forced even without an Origin header so plain health checks see it.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = cfg.AllowedOrigins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					hd := c.Writer.Header()
					hd.Set("Access-Control-Allow-Origin", origin)
					hd.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
