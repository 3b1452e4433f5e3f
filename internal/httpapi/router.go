package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/queue"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Options configures the router.
type Options struct {
	Queue           queue.Queue
	Admin           *attendance.Admin
	Location        *time.Location
	RateLimitPerMin int
	Health          map[string]HealthCheck
	Logger          *slog.Logger

	// QueueDepth, when set, reports pending pushed scans on /healthz.
	QueueDepth func(ctx context.Context) (int64, error)
}

type server struct {
	queue  queue.Queue
	admin  *attendance.Admin
	loc    *time.Location
	health map[string]HealthCheck
	depth  func(ctx context.Context) (int64, error)
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter builds the API engine.
func NewRouter(opts Options) *gin.Engine {
	s := &server{
		queue:  opts.Queue,
		admin:  opts.Admin,
		loc:    opts.Location,
		health: opts.Health,
		depth:  opts.QueueDepth,
		logger: opts.Logger,
		now:    time.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s.routes(opts.RateLimitPerMin)
}

func (s *server) routes(ratePerMin int) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", httpmiddleware.DeviceHeader},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	v1 := r.Group("/v1")
	v1.POST("/scans", httpmiddleware.NewTokenBucket(ratePerMin, ratePerMin).GinMiddleware(), s.pushScan)
	v1.PUT("/attendance/day", s.setDay)
	v1.DELETE("/attendance/day", s.clearDay)
	v1.GET("/attendance/month", s.monthSummary)
	return r
}

func (s *server) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range s.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	if s.depth != nil {
		if n, err := s.depth(c.Request.Context()); err == nil {
			body["queue_depth"] = n
		}
	}
	c.JSON(status, body)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
