package app

import (
	"github.com/zerochrono/copilot-backend/internal/config"
	"github.com/zerochrono/copilot-backend/internal/http"
	httpH "github.com/zerochrono/copilot-backend/internal/http/handlers"
	"github.com/zerochrono/copilot-backend/internal/observability"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Copilot *httpH.CopilotHandler
}

func wireHandlers(log *logger.Logger, svcs Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(),
		Copilot: httpH.NewCopilotHandler(log, svcs.Copilot),
	}
}

func wireServer(log *logger.Logger, cfg *config.Config, handlers Handlers, metrics *observability.Metrics) *http.Server {
	serviceName := ""
	if cfg.OTel.Enabled {
		serviceName = cfg.OTel.ServiceName
	}
	return http.NewServer(cfg.HTTP, log, http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		MetricsPath:     cfg.Metrics.Path,
		ServiceName:     serviceName,
		CORSAllowOrigin: cfg.HTTP.CORSAllowOrigin,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		HealthHandler:   handlers.Health,
		CopilotHandler:  handlers.Copilot,
	})
}
