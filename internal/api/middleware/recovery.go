package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/tracing"
)

// Recovery converts handler panics into 500 responses and logs the
// recovered value through the normalizing field encoder.
func Recovery(log *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestLogger(log, c).Error("Handler panicked",
			zap.String("path", c.Request.URL.Path),
			logging.Value("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	})
}

// Logger logs one line per request.
func Logger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		requestLogger(log, c).Debug("Request handled", fields...)
	}
}

func requestLogger(log *logging.Logger, c *gin.Context) *logging.Logger {
	return log.ForRequest(GetRequestID(c), string(tracing.GetTraceID(c.Request.Context())))
}
