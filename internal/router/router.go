package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/soyapp/soy-backend/internal/handler/prometheus"
	"github.com/soyapp/soy-backend/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	Timeout        time.Duration
	// WorkflowTimeout bounds certificate routes, which wait on PDF OCR.
	// Defaults to Timeout.
	WorkflowTimeout time.Duration
	MaxBodySize     int64
	CORS            middleware.CORSConfig
}

// Handlers groups the route owners. Nil handlers are not mounted.
type Handlers struct {
	Health      Handler
	Auth        Handler
	Payment     Handler
	Certificate Handler
	Audit       Handler
	Generator   Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *prometheus.Handler
	config   RouterConfig
}

// NewRouter builds the engine with the shared middleware chain. auth may be
// nil, in which case operator routes are served without authentication.
func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, metrics *prometheus.Handler, config RouterConfig) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	middleware.RegisterValidation()

	if config.Timeout <= 0 {
		config.Timeout = middleware.DefaultTimeoutConfig().Duration
	}
	if config.WorkflowTimeout < config.Timeout {
		config.WorkflowTimeout = config.Timeout
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultSizeLimitConfig().MaxBodySize
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		metrics.Middleware(),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: config.MaxBodySize}),
	)

	if config.RateLimitRPS > 0 {
		engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:   config.RateLimitRPS,
			Burst: config.RateLimitBurst,
		}).RateLimit())
	}

	return &Router{engine: engine, auth: auth, handlers: handlers, metrics: metrics, config: config}
}

// Setup mounts the routes. Timeouts are applied per group since a nested
// deadline can only shorten the one above it.
func (r *Router) Setup() {
	r.engine.GET("/metrics", r.metrics.Handler())

	public := r.engine.Group("", middleware.Timeout(middleware.TimeoutConfig{Duration: r.config.Timeout}))
	mount(public, r.handlers.Health)
	mount(public, r.handlers.Auth)
	mount(public, r.handlers.Payment)
	mount(public, r.handlers.Generator)

	// Operator routes
	var authenticate []gin.HandlerFunc
	if r.auth != nil {
		authenticate = append(authenticate, r.auth.Authenticate())
	} else {
		log.Warn().Msg("operator authentication disabled, JWT secret not configured")
	}

	workflow := r.engine.Group("", middleware.Timeout(middleware.TimeoutConfig{Duration: r.config.WorkflowTimeout}))
	workflow.Use(authenticate...)
	mount(workflow, r.handlers.Certificate)

	protected := r.engine.Group("", middleware.Timeout(middleware.TimeoutConfig{Duration: r.config.Timeout}))
	protected.Use(authenticate...)
	mount(protected, r.handlers.Audit)
}

func mount(rg *gin.RouterGroup, h Handler) {
	if h != nil {
		h.RegisterRoutes(rg)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
