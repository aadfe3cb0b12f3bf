// Package http exposes the gateway's ingress API: licence submissions
// from LITE and the health surface operators poll.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chiefgate/internal/config"
	"chiefgate/internal/domain"
	"chiefgate/internal/infra/ratelimit"
	"chiefgate/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/hiyosi/hawk"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine
	log *slog.Logger

	ingress *usecase.LicenceIngress
	health  *usecase.HealthReporter

	hawkAuth *hawk.Server

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerDeps struct {
	Ingress     *usecase.LicenceIngress
	Health      *usecase.HealthReporter
	RateLimiter domain.RateLimiter
	Log         *slog.Logger
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		r:       r,
		log:     deps.Log,
		ingress: deps.Ingress,
		health:  deps.Health,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.initAuth()
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

// ingressCredentials resolves the single HAWK identity LITE signs with.
type ingressCredentials struct {
	id  string
	key string
}

func (c ingressCredentials) GetCredential(id string) (*hawk.Credential, error) {
	if id != c.id {
		return nil, fmt.Errorf("unknown hawk id %q", id)
	}
	return &hawk.Credential{ID: c.id, Key: c.key, Alg: hawk.SHA256}, nil
}

func (s *Server) initAuth() {
	if s.cfg.IngressHawkID == "" {
		return
	}
	s.hawkAuth = hawk.NewServer(ingressCredentials{
		id:  s.cfg.IngressHawkID,
		key: s.cfg.IngressHawkKey,
	})
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.r.GET("/health", s.handleHealth)
	s.r.POST("/mail/update-licence/", s.handleUpdateLicence)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
