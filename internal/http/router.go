package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/zerochrono/copilot-backend/internal/http/handlers"
	httpMW "github.com/zerochrono/copilot-backend/internal/http/middleware"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	Metrics         *observability.Metrics
	MetricsPath     string
	ServiceName     string
	CORSAllowOrigin string
	MaxRequestBytes int64

	HealthHandler  *httpH.HealthHandler
	CopilotHandler *httpH.CopilotHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(httpMW.Recovery(cfg.Log))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log, "/health", cfg.MetricsPath))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSAllowOrigin))
	r.Use(httpMW.BodyLimit(cfg.MaxRequestBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	// Metrics
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Copilot
	if cfg.CopilotHandler != nil {
		r.POST("/generate", cfg.CopilotHandler.Generate)
		r.GET("/graph", cfg.CopilotHandler.Graph)
		r.POST("/graph-rag", cfg.CopilotHandler.GraphRAG)
	}

	return r
}
