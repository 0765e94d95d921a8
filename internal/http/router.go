package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/fleetctl/masterctl/internal/http/handlers"
	httpMW "github.com/fleetctl/masterctl/internal/http/middleware"
	"github.com/fleetctl/masterctl/internal/observability"
	"github.com/fleetctl/masterctl/internal/platform/logger"
)

// RouterConfig wires every HTTP-facing handler plus the cross-cutting
// middleware the controller's upstream boundary (spec.md §6) needs.
type RouterConfig struct {
	ChatHandler   *httpH.ChatHandler
	HealthHandler *httpH.HealthHandler
	StatsHandler  *httpH.StatsHandler
	CancelHandler *httpH.CancelHandler
	WorkerHandler *httpH.WorkerHandler

	Log     *logger.Logger
	Metrics *observability.Metrics
}

// NewRouter builds the controller's entire upstream surface: POST /chat,
// GET /health, GET /healthcheck, GET /stats, POST /cancel/:task_id for
// clients, POST /register, POST /heartbeat for workers announcing
// themselves, and GET /metrics for scrapers.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("masterctl"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/health", cfg.HealthHandler.Health)
	}
	if cfg.ChatHandler != nil {
		r.POST("/chat", cfg.ChatHandler.Chat)
	}
	if cfg.StatsHandler != nil {
		r.GET("/stats", cfg.StatsHandler.Stats)
	}
	if cfg.CancelHandler != nil {
		r.POST("/cancel/:task_id", cfg.CancelHandler.Cancel)
	}
	if cfg.WorkerHandler != nil {
		r.POST("/register", cfg.WorkerHandler.Register)
		r.POST("/heartbeat", cfg.WorkerHandler.Heartbeat)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	return r
}
