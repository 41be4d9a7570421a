package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/zerochrono/copilot-backend/internal/http/response"
	"github.com/zerochrono/copilot-backend/internal/platform/ctxutil"
	"github.com/zerochrono/copilot-backend/internal/platform/logger"
)

func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		if log != nil {
			fields := []interface{}{"panic", rec, "stack", string(debug.Stack()), "path", c.Request.URL.Path}
			fields = append(fields, ctxutil.LogFields(c.Request.Context())...)
			log.Error("panic recovered", fields...)
		}
		response.RespondError(c, http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
		c.Abort()
	})
}
